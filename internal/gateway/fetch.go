package gateway

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"crypto_dash/internal/domain"
)

// maxPages bounds FetchAllEntries against a backend whose total never converges.
const maxPages = 1000

// FetchEntriesPage fetches one page of the listing. ok is false only when the call
// itself failed; an unrecognized body is a valid empty page.
func (g *Gateway) FetchEntriesPage(ctx context.Context, page, pageSize int, query string) (domain.EntriesPage, bool) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if query != "" {
		q.Set("q", query)
	}

	raw, err := g.getJSON(ctx, EndpointSymbols, "/api/symbols", q)
	if err != nil {
		g.warn(EndpointSymbols, "", err)
		return domain.EntriesPage{}, false
	}

	p, shape := decodeEntriesPage(raw)
	if shape == shapeUnknown {
		g.logger.Warn("Unrecognized symbols payload, using empty page", slog.Int("page", page))
	}
	return p, true
}

// FetchAllEntries pages through the whole listing, concatenating in arrival order.
// It stops when the count reaches the reported total, a page is empty, or a page fails.
func (g *Gateway) FetchAllEntries(ctx context.Context, pageSize int) []domain.MarketEntry {
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}

	var all []domain.MarketEntry
	for page := 1; page <= maxPages; page++ {
		p, ok := g.FetchEntriesPage(ctx, page, pageSize, "")
		if !ok || len(p.Entries) == 0 {
			break
		}
		all = append(all, p.Entries...)
		if len(all) >= p.Total {
			break
		}
	}
	return all
}

// FetchPriceSeries returns the series for id over rng, or an empty series on any failure.
func (g *Gateway) FetchPriceSeries(ctx context.Context, id string, rng domain.RangeKey) domain.PriceSeries {
	q := url.Values{}
	if rng != "" {
		q.Set("timeframe", string(rng))
	}
	raw, err := g.getJSON(ctx, EndpointPrices, "/api/prices/"+id, q)
	if err != nil {
		g.warn(EndpointPrices, id, err)
		return domain.PriceSeries{}
	}
	return decodeSeries(raw)
}

// FetchIndicators returns nil on any failure.
func (g *Gateway) FetchIndicators(ctx context.Context, id string) *domain.Indicators {
	raw, err := g.getJSON(ctx, EndpointTechnical, "/api/technical/"+id, nil)
	if err != nil {
		g.warn(EndpointTechnical, id, err)
		return nil
	}
	out, ok := decodeIndicators(raw)
	if !ok {
		g.warn(EndpointTechnical, id, domain.ErrMalformedBody)
		return nil
	}
	return out
}

// FetchForecast returns nil on any failure.
func (g *Gateway) FetchForecast(ctx context.Context, id string, lookback int) *domain.Forecast {
	q := url.Values{}
	if lookback > 0 {
		q.Set("lookback", strconv.Itoa(lookback))
	}
	raw, err := g.getJSON(ctx, EndpointLSTM, "/api/lstm/"+id, q)
	if err != nil {
		g.warn(EndpointLSTM, id, err)
		return nil
	}
	out, ok := decodeForecast(raw)
	if !ok {
		g.warn(EndpointLSTM, id, domain.ErrMalformedBody)
		return nil
	}
	return out
}

// FetchSentiment returns nil on any failure.
func (g *Gateway) FetchSentiment(ctx context.Context, id, window string, limit int) *domain.Sentiment {
	q := url.Values{}
	if window != "" {
		q.Set("window", window)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	raw, err := g.getJSON(ctx, EndpointSentiment, "/api/sentiment/"+id, q)
	if err != nil {
		g.warn(EndpointSentiment, id, err)
		return nil
	}
	out, ok := decodeSentiment(raw)
	if !ok {
		g.warn(EndpointSentiment, id, domain.ErrMalformedBody)
		return nil
	}
	return out
}

// FetchOnchain returns nil on any failure.
func (g *Gateway) FetchOnchain(ctx context.Context, id string) *domain.Onchain {
	raw, err := g.getJSON(ctx, EndpointOnchain, "/api/onchain/"+id, nil)
	if err != nil {
		g.warn(EndpointOnchain, id, err)
		return nil
	}
	out, ok := decodeOnchain(raw)
	if !ok {
		g.warn(EndpointOnchain, id, domain.ErrMalformedBody)
		return nil
	}
	return out
}

// FetchSignal returns nil on any failure.
func (g *Gateway) FetchSignal(ctx context.Context, id string) *domain.Signal {
	raw, err := g.getJSON(ctx, EndpointSignal, "/api/signal/"+id, nil)
	if err != nil {
		g.warn(EndpointSignal, id, err)
		return nil
	}
	out, ok := decodeSignal(raw)
	if !ok {
		g.warn(EndpointSignal, id, domain.ErrMalformedBody)
		return nil
	}
	return out
}
