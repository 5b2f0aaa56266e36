package collector

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"EstateSentinel/internal/model"
)

// BatdongsanName is the registry key of the Batdongsan adapter.
const BatdongsanName = "batdongsan"

const (
	batdongsanBaseURL  = "https://batdongsan.com.vn"
	batdongsanPath     = "/nha-dat-ban"
	batdongsanPageSize = 20
)

var numberRegexp = regexp.MustCompile(`[\d.,]+`)

// BatdongsanAdapter parses static HTML search result pages.
type BatdongsanAdapter struct {
	settings  Settings
	transport Transport
	headers   map[string]string
}

// NewBatdongsanAdapter creates the adapter, filling unset settings with defaults.
func NewBatdongsanAdapter(s Settings, t Transport) *BatdongsanAdapter {
	if s.BaseURL == "" {
		s.BaseURL = batdongsanBaseURL
	}
	if s.PageSize == 0 {
		s.PageSize = batdongsanPageSize
	}
	if s.DelayMin == 0 && s.DelayMax == 0 {
		s.DelayMin, s.DelayMax = 2*time.Second, 4*time.Second
	}
	return &BatdongsanAdapter{
		settings:  s,
		transport: t,
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "vi-VN,vi;q=0.9,en;q=0.8",
		},
	}
}

func (a *BatdongsanAdapter) Name() string { return BatdongsanName }

func (a *BatdongsanAdapter) PageSize() int { return a.settings.PageSize }

func (a *BatdongsanAdapter) DelayRange() (time.Duration, time.Duration) {
	return a.settings.DelayMin, a.settings.DelayMax
}

func (a *BatdongsanAdapter) pageURL(page int) string {
	if page == 1 {
		return a.settings.BaseURL + batdongsanPath
	}
	return fmt.Sprintf("%s%s/p%d", a.settings.BaseURL, batdongsanPath, page)
}

// FetchPage downloads one search page and extracts each product card as a raw item.
func (a *BatdongsanAdapter) FetchPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("batdongsan: page must be positive, got %d", page)
	}
	body, err := get(ctx, a.transport, a.pageURL(page), nil, a.headers, a.settings.Timeout)
	if err != nil {
		return nil, fmt.Errorf("batdongsan page %d: %w", page, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("batdongsan page %d: parse html: %v: %w", page, err, ErrInvalidResponse)
	}
	list := doc.Find("#product-lists-web")
	if list.Length() == 0 {
		return nil, fmt.Errorf("batdongsan page %d: no result list: %w", page, ErrInvalidResponse)
	}

	var items []RawItem
	list.Find("div.js__card").Each(func(_ int, card *goquery.Selection) {
		items = append(items, extractCard(card, a.settings.BaseURL))
	})

	total := TotalUnknown
	if txt := strings.TrimSpace(doc.Find("#count-number").First().Text()); txt != "" {
		if n, err := strconv.Atoi(strings.NewReplacer(".", "", ",", "").Replace(txt)); err == nil {
			total = n
		}
	}
	next := doc.Find(fmt.Sprintf(`.re__pagination-group a[pid="%d"]`, page+1)).Length() > 0

	return &Page{Items: items, HasMore: next, Total: total}, nil
}

func extractCard(card *goquery.Selection, baseURL string) map[string]any {
	item := map[string]any{
		"product_id": strings.TrimSpace(card.AttrOr("prid", "")),
		"title":      strings.TrimSpace(card.Find(".js__card-title").First().Text()),
		"price_text": strings.TrimSpace(card.Find(".re__card-config-price").First().Text()),
		"area_text":  strings.TrimSpace(card.Find(".re__card-config-area").First().Text()),
		"location":   strings.TrimSpace(card.Find(".re__card-location").First().Text()),
		"bedrooms":   strings.TrimSpace(card.Find(".re__card-config-bedroom").First().Text()),
		"toilets":    strings.TrimSpace(card.Find(".re__card-config-toilet").First().Text()),
		"type":       strings.TrimSpace(card.AttrOr("data-type", "")),
	}
	if href, ok := card.Find("a.js__product-link-for-product-id").First().Attr("href"); ok {
		if !strings.HasPrefix(href, "http") {
			href = baseURL + href
		}
		item["link"] = href
	}
	img := card.Find("img").First()
	if src := img.AttrOr("data-src", img.AttrOr("src", "")); src != "" {
		item["image"] = src
	}
	return item
}

// Normalize maps one extracted card to a listing.
func (a *BatdongsanAdapter) Normalize(raw RawItem) (*model.Listing, error) {
	card, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("batdongsan: item is %T, not an object", raw)
	}
	link := stringField(card, "link", "")
	if link == "" {
		return nil, fmt.Errorf("batdongsan: card %q has no link", stringField(card, "title", ""))
	}
	area, err := parseArea(stringField(card, "area_text", ""))
	if err != nil {
		return nil, fmt.Errorf("batdongsan: %s: %w", link, err)
	}
	price, err := parsePrice(stringField(card, "price_text", ""), area)
	if err != nil {
		return nil, fmt.Errorf("batdongsan: %s: %w", link, err)
	}

	extra := map[string]any{}
	for _, k := range []string{"product_id", "price_text", "area_text"} {
		if v := stringField(card, k, ""); v != "" {
			extra[k] = v
		}
	}

	l := &model.Listing{
		Title:        stringField(card, "title", "No title"),
		Location:     ComposeLocation(strings.Split(stringField(card, "location", ""), ",")...),
		Price:        price,
		Area:         area,
		ImageURL:     stringField(card, "image", ""),
		Link:         link,
		PropertyType: stringField(card, "type", "Unknown"),
		Bedrooms:     countFromText(stringField(card, "bedrooms", "")),
		Bathrooms:    countFromText(stringField(card, "toilets", "")),
		CapturedAt:   time.Now().UTC(),
		Source:       BatdongsanName,
		Annotations:  model.Annotations{Extra: extra},
	}
	l.Normalize()
	if err := validate.Struct(l); err != nil {
		return nil, fmt.Errorf("batdongsan: %s: %w", link, err)
	}
	return l, nil
}

// parseVietNumber reads numbers written with '.' thousands and ',' decimals.
func parseVietNumber(s string) (float64, error) {
	m := numberRegexp.FindString(s)
	if m == "" {
		return 0, fmt.Errorf("no number in %q", s)
	}
	if strings.Count(m, ".") > 0 && strings.Count(m, ",") == 0 && !looksLikeThousands(m) {
		return strconv.ParseFloat(m, 64)
	}
	m = strings.ReplaceAll(m, ".", "")
	m = strings.ReplaceAll(m, ",", ".")
	return strconv.ParseFloat(m, 64)
}

// looksLikeThousands reports whether every '.'-group after the first has three digits.
func looksLikeThousands(s string) bool {
	groups := strings.Split(s, ".")
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// parseArea reads "85 m²" style text. Empty text means unknown area.
func parseArea(text string) (float64, error) {
	if text == "" {
		return 0, nil
	}
	return parseVietNumber(text)
}

// parsePrice reads "3,2 tỷ", "850 triệu" or "95 triệu/m²". Negotiable prices yield 0.
func parsePrice(text string, area float64) (int64, error) {
	lower := strings.ToLower(text)
	if lower == "" || strings.Contains(lower, "thỏa thuận") || strings.Contains(lower, "thoả thuận") {
		return 0, nil
	}
	v, err := parseVietNumber(lower)
	if err != nil {
		return 0, err
	}
	switch {
	case strings.Contains(lower, "tỷ"):
		v *= 1e9
	case strings.Contains(lower, "triệu"):
		v *= 1e6
	case strings.Contains(lower, "nghìn"):
		v *= 1e3
	}
	if strings.Contains(lower, "/m²") || strings.Contains(lower, "/m2") {
		v *= area
	}
	return int64(math.Round(v)), nil
}

func countFromText(text string) *int {
	m := numberRegexp.FindString(text)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.Trim(m, ".,"))
	if err != nil {
		return nil
	}
	return &n
}
