package contacts

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/buyer-sync/internal/model"
)

// Score component ceilings.
const (
	maxNameScore  = 40
	stateScore    = 10
	cityScore     = 5
	typeScore     = 15
	earthRadiusMi = 3959.0

	// Two candidates are ambiguous when the runner-up is within
	// ambiguityMargin points of a top score below ambiguityCeiling.
	ambiguityMargin  = 8
	ambiguityCeiling = 95
)

// typeKeywords are the name fragments that suggest a facility type.
var typeKeywords = map[model.FacilityType][]string{
	model.FacilityEthanol:   {"ethanol", "biofuel", "bio"},
	model.FacilityFeedlot:   {"feed", "cattle", "livestock"},
	model.FacilityProcessor: {"milling", "foods", "processing", "grain"},
	model.FacilityExport:    {"export", "terminal", "port"},
	model.FacilityShuttle:   {"terminal", "shuttle", "grain"},
	model.FacilityTransload: {"transload", "logistics", "intermodal"},
	model.FacilityCrush:     {"crush", "soy"},
	model.FacilityElevator:  {"grain", "elevator", "co-op", "coop", "cooperative"},
	model.FacilityRiver:     {"river", "terminal", "port"},
}

// Candidate is a place returned by search.
type Candidate struct {
	PlaceID          string   `json:"placeId"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
}

// Breakdown is the per-component score.
type Breakdown struct {
	Name     int `json:"name"`
	Distance int `json:"distance"`
	State    int `json:"state"`
	City     int `json:"city"`
	Type     int `json:"type"`
}

// Total sums the components.
func (b Breakdown) Total() int {
	return b.Name + b.Distance + b.State + b.City + b.Type
}

// Match is a scored candidate.
type Match struct {
	Candidate Candidate `json:"candidate"`
	Score     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
}

// Score rates how well candidate c matches facility f. The result is
// always within [0, 100].
func Score(f model.Facility, c Candidate) Match {
	b := Breakdown{
		Name:     nameScore(f.Name, c.Name),
		Distance: distanceScore(f, c),
		Type:     typeKeywordScore(f.Type, c.Name),
	}
	addr := strings.ToLower(c.FormattedAddress)
	if addr != "" {
		if st := strings.ToLower(strings.TrimSpace(f.State)); st != "" && strings.Contains(addr, st) {
			b.State = stateScore
		}
		if city := strings.ToLower(strings.TrimSpace(f.City)); city != "" && strings.Contains(addr, city) {
			b.City = cityScore
		}
	}
	return Match{Candidate: c, Score: b.Total(), Breakdown: b}
}

// Rank scores every candidate and sorts them best first. Ties keep search order.
func Rank(f model.Facility, candidates []Candidate) []Match {
	out := make([]Match, len(candidates))
	for i, c := range candidates {
		out[i] = Score(f, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Ambiguous reports whether ranked matches are too close to pick one.
func Ambiguous(ranked []Match) bool {
	if len(ranked) < 2 {
		return false
	}
	top, second := ranked[0].Score, ranked[1].Score
	return top-second <= ambiguityMargin && top < ambiguityCeiling
}

func nameScore(facilityName, candidateName string) int {
	want := tokenSet(facilityName, nil)
	have := tokenSet(candidateName, nil)
	if len(want) == 0 || len(have) == 0 {
		return 0
	}
	overlap := 0
	for tok := range want {
		if _, ok := have[tok]; ok {
			overlap++
		}
	}
	return int(math.Round(maxNameScore * float64(overlap) / float64(len(want))))
}

func distanceScore(f model.Facility, c Candidate) int {
	if c.Lat == nil || c.Lng == nil {
		return 0
	}
	miles := haversineMiles(f.Lat, f.Lng, *c.Lat, *c.Lng)
	switch {
	case miles <= 1:
		return 30
	case miles <= 5:
		return 25
	case miles <= 15:
		return 18
	case miles <= 30:
		return 10
	case miles <= 60:
		return 5
	default:
		return 0
	}
}

func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLon/2), 2)
	return earthRadiusMi * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func typeKeywordScore(t model.FacilityType, candidateName string) int {
	name := strings.ToLower(candidateName)
	for _, kw := range typeKeywords[t] {
		if strings.Contains(name, kw) {
			return typeScore
		}
	}
	return 0
}
