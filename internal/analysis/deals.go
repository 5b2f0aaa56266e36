package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"EstateSentinel/internal/calculator"
	"EstateSentinel/internal/model"
	"EstateSentinel/internal/store"
)

// Deal flagging defaults.
const (
	DefaultDealThreshold       = 0.8
	DefaultMinLocationListings = 5
	DealScorePrecision         = 1
)

// DealScore is the percentage a price sits below the location average.
func DealScore(pricePerArea, average float64) float64 {
	return calculator.Round((average-pricePerArea)/average*100, DealScorePrecision)
}

// EvaluateDeal returns the annotations a listing should carry and whether they differ from the current ones.
// Listings without a price-per-area or without a usable average are left as they are.
func EvaluateDeal(l model.Listing, average, threshold float64) (model.Annotations, bool) {
	ann := l.Annotations
	if l.PricePerArea == nil || average <= 0 {
		return ann, false
	}
	ppa := *l.PricePerArea
	if ppa < average*threshold {
		next := ann
		next.SetDeal(DealScore(ppa, average), average)
		if next.SameDeal(ann) {
			return ann, false
		}
		return next, true
	}
	changed := ann.ClearDeal()
	return ann, changed
}

// DealResult summarizes one deal flagging pass.
type DealResult struct {
	// Flagged counts listings that are deals after the pass, whether or not they were before.
	Flagged   int
	Cleared   int
	Evaluated int
	Updated   int
	Failed    int
	Deals     []model.Listing
}

// FlagDeals re-evaluates the deal annotation of every listing in a location
// with at least minCount listings. Each listing update commits on its own;
// a failed update is logged and does not stop the pass.
func FlagDeals(ctx context.Context, st store.Store, threshold float64, minCount int, logger logrus.FieldLogger) (*DealResult, error) {
	averages, err := st.LoadLocationAverages(ctx, minCount)
	if err != nil {
		return nil, fmt.Errorf("load location averages: %w", err)
	}
	listings, err := st.LoadAllListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load listings: %w", err)
	}

	res := &DealResult{}
	for _, l := range listings {
		avg, ok := averages[l.Location]
		if !ok {
			continue
		}
		res.Evaluated++

		wasDeal := l.Annotations.IsDeal()
		ann, changed := EvaluateDeal(l, avg, threshold)
		if changed {
			if err := st.UpdateListingAnnotations(ctx, l.ID, ann); err != nil {
				res.Failed++
				logger.WithError(err).WithFields(logrus.Fields{"listing_id": l.ID, "location": l.Location}).
					Error("failed to update deal annotation")
				continue
			}
			res.Updated++
			l.Annotations = ann
		}

		if l.Annotations.IsDeal() {
			res.Flagged++
			res.Deals = append(res.Deals, l)
		} else if wasDeal {
			res.Cleared++
		}
	}

	sort.SliceStable(res.Deals, func(i, j int) bool {
		return res.Deals[i].Annotations.Deal.Score > res.Deals[j].Annotations.Deal.Score
	})

	logger.WithFields(logrus.Fields{
		"locations": len(averages),
		"evaluated": res.Evaluated,
		"flagged":   res.Flagged,
		"cleared":   res.Cleared,
		"updated":   res.Updated,
	}).Info("deal flagging finished")
	return res, nil
}
