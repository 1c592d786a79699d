package tools

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/tool"
	t_utils "github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/dyike/StockAnalyzer/consts"
	"github.com/dyike/StockAnalyzer/models"
	"github.com/dyike/StockAnalyzer/pkg/dataflows"
)

const (
	defaultNewsResults = 10
	maxNewsResults     = 30
	maxSummaryLen      = 400
)

type NewsSource interface {
	SearchRSS(ctx context.Context, query string, maxResults int) ([]*dataflows.NewsArticle, error)
}

func NewStockNewsTool(src NewsSource) tool.BaseTool {
	return t_utils.NewTool(
		&schema.ToolInfo{
			Name: consts.ToolStockNews,
			Desc: "Get recent news headlines about a stock from Google News",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"symbol": {
					Type:     schema.String,
					Desc:     "The stock symbol or company name",
					Required: true,
				},
				"max_results": {
					Type:     schema.Integer,
					Desc:     "Maximum number of articles (default: 10, max: 30)",
					Required: false,
				},
			}),
		},
		func(ctx context.Context, input models.NewsInput) (*models.NewsOutput, error) {
			start := time.Now()
			out := &models.NewsOutput{Symbol: input.Symbol, Articles: []*models.NewsArticle{}}

			limit := input.MaxResults
			if limit <= 0 {
				limit = defaultNewsResults
			}
			if limit > maxNewsResults {
				limit = maxNewsResults
			}

			articles, err := src.SearchRSS(ctx, input.Symbol+" stock", limit)
			if err != nil {
				hlog.CtxWarnf(ctx, "news search for %s failed: %v", input.Symbol, err)
				out.Error = err.Error()
				observe(consts.ToolStockNews, start, "error")
				return out, nil
			}

			for _, a := range articles {
				article := &models.NewsArticle{
					Title:   a.Title,
					Source:  a.Source,
					URL:     a.URL,
					Summary: truncateRunes(a.Content, maxSummaryLen),
				}
				if !a.PublishedAt.IsZero() {
					article.PublishedAt = a.PublishedAt.UTC().Format(time.RFC3339)
				}
				out.Articles = append(out.Articles, article)
			}
			observe(consts.ToolStockNews, start, "ok")
			return out, nil
		},
	)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
