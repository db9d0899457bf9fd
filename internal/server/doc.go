// Package server accepts client connections and runs one news session per
// connection.
//
// Flow:
// 1. Accept a TCP connection and spawn its goroutine.
// 2. Read the username line under a handshake deadline.
// 3. Clear the deadline and hand the channel to session.Run.
// 4. Close the connection when the session ends.
package server
