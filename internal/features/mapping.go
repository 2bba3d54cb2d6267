package features

// Form field names as submitted by the estimator form.
const (
	FieldLocationMode = "chooseLocation"
	FieldCity         = "Cityname"
	FieldLatitude     = "Latitude"
	FieldLongitude    = "Longitude"
	FieldCategory     = "Category"
	FieldArea         = "Area"
	FieldRooms        = "Rooms"
	FieldYear         = "Year"
)

// Location modes selectable on the form.
const (
	LocationByCity        = "cityname"
	LocationByCoordinates = "coordinates"
)

// Canonical feature names shared with the training schema.
const (
	FeatureArea      = "Area"
	FeatureRooms     = "Rooms"
	FeatureYear      = "ConstructionYear"
	FeatureLatitude  = "Latitude"
	FeatureLongitude = "Longitude"
)

// CategoryUnknown is reported when the submitted category matches none of the
// known categories. Its one-hot encoding is all zeros.
const CategoryUnknown = "unknown"

type Kind int

const (
	// KindNumeric copies a parsed float from Field.
	KindNumeric Kind = iota
	// KindOneHot is 1 when Field equals Value exactly.
	KindOneHot
	// KindFlag is 1 when Field is present and truthy.
	KindFlag
)

// Rule maps one model feature to its source form field.
type Rule struct {
	Feature string
	Field   string
	Value   string
	Kind    Kind
	// Group names the form section a flag belongs to ("Condition", "Outdoor").
	Group string
}

type Mapping []Rule

// DefaultMapping is the feature table the estimator form feeds. Latitude and
// Longitude are resolved separately because they depend on the location mode.
var DefaultMapping = Mapping{
	{Feature: FeatureArea, Field: FieldArea, Kind: KindNumeric},
	{Feature: FeatureRooms, Field: FieldRooms, Kind: KindNumeric},
	{Feature: FeatureYear, Field: FieldYear, Kind: KindNumeric},

	{Feature: "EQ_CAT_apartment", Field: FieldCategory, Value: "Apartment", Kind: KindOneHot},
	{Feature: "EQ_CAT_floorApartment", Field: FieldCategory, Value: "Floor-Apartment", Kind: KindOneHot},
	{Feature: "EQ_CAT_maisonette", Field: FieldCategory, Value: "Maisonette", Kind: KindOneHot},
	{Feature: "EQ_CAT_penthouse", Field: FieldCategory, Value: "Penthouse", Kind: KindOneHot},
	{Feature: "EQ_CAT_terraceApartment", Field: FieldCategory, Value: "Terrace-Apartment", Kind: KindOneHot},
	{Feature: "EQ_CAT_loft", Field: FieldCategory, Value: "Loft", Kind: KindOneHot},

	{Feature: "EQ_CON_firstOccupancy", Field: "First Occupancy", Kind: KindFlag, Group: "Condition"},
	{Feature: "EQ_CON_upscale", Field: "Upscale", Kind: KindFlag, Group: "Condition"},
	{Feature: "EQ_CON_maintained", Field: "Maintained", Kind: KindFlag, Group: "Condition"},
	{Feature: "EQ_CON_renovated", Field: "Renovated", Kind: KindFlag, Group: "Condition"},
	{Feature: "EQ_CON_refurbished", Field: "Refurbished", Kind: KindFlag, Group: "Condition"},

	{Feature: "EQ_OUT_balcony", Field: "Balcony", Kind: KindFlag, Group: "Outdoor"},
	{Feature: "EQ_OUT_garden", Field: "Garden", Kind: KindFlag, Group: "Outdoor"},
	{Feature: "EQ_OUT_loggia", Field: "Loggia", Kind: KindFlag, Group: "Outdoor"},
	{Feature: "EQ_OUT_terrace", Field: "Terrace", Kind: KindFlag, Group: "Outdoor"},
}

func (m Mapping) filter(kind Kind) []Rule {
	var out []Rule
	for _, r := range m {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Categories returns the selectable category values in table order.
func (m Mapping) Categories() []string {
	var out []string
	for _, r := range m.filter(KindOneHot) {
		out = append(out, r.Value)
	}
	return out
}

// Flags returns the flag rules of one group, or all flags for an empty group.
func (m Mapping) Flags(group string) []Rule {
	var out []Rule
	for _, r := range m.filter(KindFlag) {
		if group == "" || r.Group == group {
			out = append(out, r)
		}
	}
	return out
}

// FeatureNames lists every feature the mapping can produce, coordinates included.
func (m Mapping) FeatureNames() []string {
	names := make([]string, 0, len(m)+2)
	for _, r := range m {
		names = append(names, r.Feature)
	}
	return append(names, FeatureLatitude, FeatureLongitude)
}

// Unproduced returns the columns that no rule of m can fill. Such columns are
// always zero-substituted at estimation time.
func (m Mapping) Unproduced(columns []string) []string {
	known := make(map[string]struct{}, len(m)+2)
	for _, name := range m.FeatureNames() {
		known[name] = struct{}{}
	}

	var out []string
	for _, col := range columns {
		if _, ok := known[col]; !ok {
			out = append(out, col)
		}
	}
	return out
}

// FlagFields returns the form field names of all flag rules.
func (m Mapping) FlagFields() []string {
	var out []string
	for _, r := range m.Flags("") {
		out = append(out, r.Field)
	}
	return out
}
