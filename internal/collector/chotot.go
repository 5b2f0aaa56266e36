package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"EstateSentinel/internal/model"
)

// ChototName is the registry key of the Chotot adapter.
const ChototName = "chotot"

const (
	chototBaseURL  = "https://chotot.com"
	chototAPIURL   = "https://gateway.chotot.com/v1/public/ad-listing"
	chototCategory = 1000
	chototPageSize = 20
)

// chototPassthrough lists upstream fields copied verbatim into the annotation extras.
var chototPassthrough = []string{
	"ad_id", "category", "region_v2", "area_v2", "price_string", "date",
	"account_name", "full_name", "street_name", "ward_name", "area_name",
	"region_name", "latitude", "longitude", "property_legal_document",
	"furnishing_sell", "furnishing_rent", "house_type", "apartment_type",
	"floors", "width", "length", "living_size", "deposit",
	"price_million_per_m2", "has_video", "number_of_images",
	"images", "videos", "seller_info",
}

// ChototAdapter reads the public Chotot ad-listing JSON API.
type ChototAdapter struct {
	settings  Settings
	transport Transport
	headers   map[string]string
}

// NewChototAdapter creates the adapter, filling unset settings with defaults.
func NewChototAdapter(s Settings, t Transport) *ChototAdapter {
	if s.BaseURL == "" {
		s.BaseURL = chototBaseURL
	}
	if s.APIURL == "" {
		s.APIURL = chototAPIURL
	}
	if s.Category == 0 {
		s.Category = chototCategory
	}
	if s.PageSize == 0 {
		s.PageSize = chototPageSize
	}
	if s.DelayMin == 0 && s.DelayMax == 0 {
		s.DelayMin, s.DelayMax = 1*time.Second, 2*time.Second
	}
	return &ChototAdapter{
		settings:  s,
		transport: t,
		headers: map[string]string{
			"User-Agent":      "EstateSentinel/1.0",
			"Accept":          "application/json",
			"Accept-Language": "vi-VN,vi;q=0.9,en;q=0.8",
			"Referer":         s.BaseURL + "/",
			"Origin":          s.BaseURL,
		},
	}
}

func (a *ChototAdapter) Name() string { return ChototName }

func (a *ChototAdapter) PageSize() int { return a.settings.PageSize }

func (a *ChototAdapter) DelayRange() (time.Duration, time.Duration) {
	return a.settings.DelayMin, a.settings.DelayMax
}

// chototPage is the subset of the listing response the adapter relies on.
type chototPage struct {
	Ads   *[]any `json:"ads"`
	Total int    `json:"total"`
}

// FetchPage requests one 1-based page of ads.
func (a *ChototAdapter) FetchPage(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		return nil, fmt.Errorf("chotot: page must be positive, got %d", page)
	}
	params := url.Values{}
	params.Set("cg", strconv.Itoa(a.settings.Category))
	params.Set("limit", strconv.Itoa(a.settings.PageSize))
	params.Set("page", strconv.Itoa(page))

	body, err := get(ctx, a.transport, a.settings.APIURL, params, a.headers, a.settings.Timeout)
	if err != nil {
		return nil, fmt.Errorf("chotot page %d: %w", page, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("chotot page %d: empty body: %w", page, ErrInvalidResponse)
	}
	var resp chototPage
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("chotot page %d: decode: %v: %w", page, err, ErrInvalidResponse)
	}
	if resp.Ads == nil {
		return nil, fmt.Errorf("chotot page %d: missing ads: %w", page, ErrInvalidResponse)
	}

	items := make([]RawItem, len(*resp.Ads))
	for i, ad := range *resp.Ads {
		items[i] = ad
	}
	return &Page{
		Items:   items,
		HasMore: page*a.settings.PageSize < resp.Total,
		Total:   resp.Total,
	}, nil
}

// Normalize maps one ad to a listing. Missing fields default; wrong types are an error.
func (a *ChototAdapter) Normalize(raw RawItem) (*model.Listing, error) {
	ad, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("chotot: item is %T, not an object", raw)
	}
	price, err := intField(ad, "price")
	if err != nil {
		return nil, fmt.Errorf("chotot: %w", err)
	}
	area, err := floatField(ad, "size")
	if err != nil {
		return nil, fmt.Errorf("chotot: %w", err)
	}

	adID := idString(ad, "ad_id")
	link := ""
	if adID != "" {
		link = a.settings.BaseURL + "/mua-ban-nha-dat/" + adID
	}

	extra := make(map[string]any)
	for _, k := range chototPassthrough {
		if v, ok := ad[k]; ok && v != nil {
			extra[k] = v
		}
	}

	l := &model.Listing{
		Title: stringField(ad, "subject", "No title"),
		Location: ComposeLocation(
			stringField(ad, "street_name", ""),
			stringField(ad, "ward_name", ""),
			stringField(ad, "area_name", ""),
			stringField(ad, "region_name", ""),
		),
		Price:        price,
		Area:         area,
		ImageURL:     stringField(ad, "image", ""),
		Link:         link,
		PropertyType: stringField(ad, "category_name", "Unknown"),
		Bedrooms:     optionalInt(ad, "rooms"),
		Bathrooms:    optionalInt(ad, "toilets"),
		CapturedAt:   time.Now().UTC(),
		Source:       ChototName,
		Annotations:  model.Annotations{Extra: extra},
	}
	l.Normalize()
	if err := validate.Struct(l); err != nil {
		return nil, fmt.Errorf("chotot: ad %s: %w", adID, err)
	}
	return l, nil
}
