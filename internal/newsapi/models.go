package newsapi

import "encoding/json"

// ArticleSource is the nested source reference on a headline.
type ArticleSource struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// Article is one top-headlines record as returned upstream.
type Article struct {
	Source      ArticleSource `json:"source"`
	Author      *string       `json:"author"`
	Title       *string       `json:"title"`
	Description *string       `json:"description"`
	URL         *string       `json:"url"`
	URLToImage  *string       `json:"urlToImage"`
	PublishedAt *string       `json:"publishedAt"`
	Content     *string       `json:"content"`
}

// Source is one sources record as returned upstream.
type Source struct {
	ID          *string `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	Category    *string `json:"category"`
	Language    *string `json:"language"`
	Country     *string `json:"country"`
}

// HeadlinesResult carries the decoded articles and the untouched body.
type HeadlinesResult struct {
	Raw          json.RawMessage
	Status       string
	TotalResults int
	Articles     []Article
}

// SourcesResult carries the decoded sources and the untouched body.
type SourcesResult struct {
	Raw     json.RawMessage
	Status  string
	Sources []Source
}

type headlinesBody struct {
	Status       string    `json:"status"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

type sourcesBody struct {
	Status  string   `json:"status"`
	Sources []Source `json:"sources"`
}

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
