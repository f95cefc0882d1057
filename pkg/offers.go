package pkg

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/SportiQue-XRPL/XRP-LEDGER/audit"
	"github.com/SportiQue-XRPL/XRP-LEDGER/pkg/logger"
)

// SubjectProfile describes the subject browsing or accepting offers. The
// profile is matched against offer target criteria and never stored.
type SubjectProfile struct {
	DID        DID
	Address    Address
	Age        int
	Conditions []string
}

// CreateDataOffer publishes a requester's offer. The stored offer gets its
// id, timestamps and pending status here.
func (p *Platform) CreateDataOffer(offer DataOffer) (*DataOffer, error) {
	if offer.Requester == "" || offer.RequesterAddress == "" {
		return nil, Errorf(ReasonOfferUnavailable, "an offer requires a requester and its ledger address")
	}
	if offer.Compensation <= 0 {
		return nil, Errorf(ReasonOfferUnavailable, "an offer requires a positive compensation")
	}
	if len(offer.DataTypes) == 0 {
		return nil, Errorf(ReasonOfferUnavailable, "an offer requires at least one data type")
	}

	now := TimeNow()
	offer.ID = fmt.Sprintf("offer_%s", uuid.New())
	offer.CreatedAt = now
	offer.Status = OfferPending
	if offer.ValidUntil.IsZero() {
		offer.ValidUntil = now.Add(30 * 24 * time.Hour)
	}

	p.mu.Lock()
	p.offers[offer.ID] = &offer
	p.mu.Unlock()

	p.Audit.Append(audit.KindDataRequested, string(offer.Requester), "", offer.ID, "", map[string]interface{}{
		"purpose":      offer.Purpose,
		"dataTypes":    offer.DataTypes,
		"compensation": offer.Compensation,
	})
	logger.Logger().Infof("offer %s published by %s", offer.ID, offer.Requester)

	stored := offer
	return &stored, nil
}

// AvailableOffers lists pending, unexpired offers whose target criteria the
// profile satisfies.
func (p *Platform) AvailableOffers(profile SubjectProfile) []*DataOffer {
	now := TimeNow()
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*DataOffer
	for _, offer := range p.offers {
		if offer.Status != OfferPending || !now.Before(offer.ValidUntil) {
			continue
		}
		if !matchesCriteria(profile, offer.TargetCriteria) {
			continue
		}
		copied := *offer
		out = append(out, &copied)
	}
	return out
}

// Offer returns the stored offer.
func (p *Platform) Offer(offerID string) (*DataOffer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	offer, ok := p.offers[offerID]
	if !ok {
		return nil, Errorf(ReasonNotFound, "no offer with id %s", offerID)
	}
	copied := *offer
	return &copied, nil
}

func matchesCriteria(profile SubjectProfile, criteria map[string]interface{}) bool {
	for key, expected := range criteria {
		switch key {
		case "min_age":
			if limit, ok := asFloat(expected); ok && float64(profile.Age) < limit {
				return false
			}
		case "max_age":
			if limit, ok := asFloat(expected); ok && float64(profile.Age) > limit {
				return false
			}
		case "conditions":
			if !hasAnyCondition(profile.Conditions, expected) {
				return false
			}
		}
	}
	return true
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// hasAnyCondition reports whether the profile carries at least one of the
// wanted conditions.
func hasAnyCondition(conditions []string, wanted interface{}) bool {
	var wantedList []string
	switch w := wanted.(type) {
	case []string:
		wantedList = w
	case []interface{}:
		for _, item := range w {
			if s, ok := item.(string); ok {
				wantedList = append(wantedList, s)
			}
		}
	case string:
		wantedList = []string{w}
	default:
		return false
	}
	for _, want := range wantedList {
		for _, have := range conditions {
			if have == want {
				return true
			}
		}
	}
	return false
}
