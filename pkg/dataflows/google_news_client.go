package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const googleNewsRSSURL = "https://news.google.com/rss/search"

type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      Source `xml:"source"`
	GUID        string `xml:"guid"`
}

type Source struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

type GoogleNewsClient struct {
	client  *resty.Client
	baseURL string
	retry   *RetryConfig
}

type GoogleNewsOption func(*GoogleNewsClient)

// WithBaseURL points the client at another RSS search endpoint.
func WithBaseURL(u string) GoogleNewsOption {
	return func(c *GoogleNewsClient) { c.baseURL = u }
}

func WithRetryConfig(rc *RetryConfig) GoogleNewsOption {
	return func(c *GoogleNewsClient) { c.retry = rc }
}

func NewGoogleNewsClient(opts ...GoogleNewsOption) *GoogleNewsClient {
	client := resty.New()
	client.SetTimeout(20 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	gnc := &GoogleNewsClient{
		client:  client,
		baseURL: googleNewsRSSURL,
		retry:   DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(gnc)
	}
	return gnc
}

// SearchRSS queries the Google News RSS feed and returns at most maxResults
// articles in feed order.
func (gnc *GoogleNewsClient) SearchRSS(ctx context.Context, query string, maxResults int) ([]*NewsArticle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	var articles []*NewsArticle
	err := WithRetry(ctx, gnc.retry, func() error {
		resp, err := gnc.client.R().SetContext(ctx).Get(gnc.buildRSSURL(query))
		if err != nil {
			return fmt.Errorf("fetch RSS feed: %w", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("HTTP error %d when fetching RSS feed", resp.StatusCode())
		}

		articles, err = ParseRSS(resp.Body(), maxResults)
		return err
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (gnc *GoogleNewsClient) buildRSSURL(query string) string {
	v := url.Values{}
	v.Set("q", query)
	v.Set("hl", "en-US")
	v.Set("gl", "US")
	v.Set("ceid", "US:en")
	return gnc.baseURL + "?" + v.Encode()
}

// ParseRSS decodes an RSS 2.0 document. maxResults <= 0 means no limit.
func ParseRSS(data []byte, maxResults int) ([]*NewsArticle, error) {
	var rss RSS
	if err := xml.Unmarshal(data, &rss); err != nil {
		return nil, fmt.Errorf("parse RSS XML: %w", err)
	}

	articles := make([]*NewsArticle, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		if maxResults > 0 && len(articles) >= maxResults {
			break
		}
		articles = append(articles, convertRSSItem(item))
	}
	return articles, nil
}

func convertRSSItem(item Item) *NewsArticle {
	pubTime, err := time.Parse(time.RFC1123Z, item.PubDate)
	if err != nil {
		pubTime, _ = time.Parse(time.RFC1123, item.PubDate)
	}

	source := strings.TrimSpace(item.Source.Text)
	if source == "" && item.Source.URL != "" {
		if u, err := url.Parse(item.Source.URL); err == nil {
			source = u.Host
		}
	}

	return &NewsArticle{
		Title:       strings.TrimSpace(item.Title),
		Content:     cleanHTMLContent(item.Description),
		URL:         item.Link,
		Source:      source,
		PublishedAt: pubTime,
	}
}

// cleanHTMLContent flattens the HTML snippet Google puts in descriptions.
func cleanHTMLContent(htmlContent string) string {
	if strings.TrimSpace(htmlContent) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return strings.TrimSpace(htmlContent)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
