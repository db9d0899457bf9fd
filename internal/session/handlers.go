package session

import (
	"context"

	"github.com/danmuck/newswire/internal/newsapi"
	"github.com/danmuck/newswire/internal/protocol"
)

func (s *Session) handleHeadlines(ctx context.Context, req protocol.Request) protocol.Response {
	if req.Action == protocol.ActionHeadlinesDetail {
		idx, errResp := parseIndex(req, len(s.headlines))
		if errResp != nil {
			return *errResp
		}
		return mustResponse(protocol.HeadlineDetailResponse(headlineDetail(s.headlines[idx])))
	}

	params, err := s.rules.Headlines(req.Params)
	if err != nil {
		return protocol.ErrorResponse(err.Error())
	}
	res, err := s.gateway.FetchHeadlines(ctx, params)
	if err != nil {
		return s.upstreamFailure(req.Action, err)
	}
	s.persist(ctx, req.Action, res.Raw)

	articles := res.Articles
	if len(articles) > s.maxResults {
		articles = articles[:s.maxResults]
	}
	s.headlines = append([]newsapi.Article(nil), articles...)

	items := make([]protocol.HeadlineItem, 0, len(s.headlines))
	for i, a := range s.headlines {
		items = append(items, protocol.HeadlineItem{
			Index:  i + 1,
			Source: a.Source.Name,
			Author: a.Author,
			Title:  a.Title,
		})
	}
	s.logger.Info().
		Str("action", string(req.Action)).
		Int("upstream_total", res.TotalResults).
		Int("cached", len(items)).
		Msg("headlines fetched")
	return mustResponse(protocol.HeadlinesResponse(items))
}

func (s *Session) handleSources(ctx context.Context, req protocol.Request) protocol.Response {
	if req.Action == protocol.ActionSourcesDetail {
		idx, errResp := parseIndex(req, len(s.sources))
		if errResp != nil {
			return *errResp
		}
		return mustResponse(protocol.SourceDetailResponse(sourceDetail(s.sources[idx])))
	}

	params, err := s.rules.Sources(req.Params)
	if err != nil {
		return protocol.ErrorResponse(err.Error())
	}
	res, err := s.gateway.FetchSources(ctx, params)
	if err != nil {
		return s.upstreamFailure(req.Action, err)
	}
	s.persist(ctx, req.Action, res.Raw)

	sources := res.Sources
	if len(sources) > s.maxResults {
		sources = sources[:s.maxResults]
	}
	s.sources = append([]newsapi.Source(nil), sources...)

	items := make([]protocol.SourceItem, 0, len(s.sources))
	for i, src := range s.sources {
		items = append(items, protocol.SourceItem{Index: i + 1, Name: src.Name})
	}
	s.logger.Info().
		Str("action", string(req.Action)).
		Int("cached", len(items)).
		Msg("sources fetched")
	return mustResponse(protocol.SourcesResponse(items))
}

func headlineDetail(a newsapi.Article) protocol.HeadlineDetail {
	return protocol.HeadlineDetail{
		Source:      a.Source.Name,
		Author:      a.Author,
		Title:       a.Title,
		URL:         a.URL,
		Description: a.Description,
		PublishedAt: a.PublishedAt,
	}
}

func sourceDetail(src newsapi.Source) protocol.SourceDetail {
	return protocol.SourceDetail{
		Name:        src.Name,
		Country:     src.Country,
		Description: src.Description,
		URL:         src.URL,
		Category:    src.Category,
		Language:    src.Language,
	}
}

// mustResponse panics on an encode failure; Handle recovers it into an error response.
func mustResponse(resp protocol.Response, err error) protocol.Response {
	if err != nil {
		panic(err)
	}
	return resp
}
