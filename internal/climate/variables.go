package climate

// AggKind selects the statistic a variable's published normal is built
// from. Every variable still gets the full statistic set; AggKind only
// decides which one the summary table leads with.
type AggKind string

const (
	AggMean AggKind = "mean" // averaged quantities (temperatures, humidity)
	AggSum  AggKind = "sum"  // accumulative quantities (precipitation, sunshine)
	AggMax  AggKind = "max"  // absolute maxima
	AggMin  AggKind = "min"  // absolute minima
)

// Variable describes one measurement series the archive publishes for
// monthly data. PID is the archive's numeric variable id used in data.xml
// queries; Name is the stable field name the archive maps that id to in
// its response params block.
type Variable struct {
	PID        int
	Name       string
	Label      string
	Unit       string
	Agg        AggKind
	Weatherbox string // weatherbox template field, empty when not published
}

// Variables lists every tracked archive variable in publication order.
var Variables = []Variable{
	{PID: 136, Name: "tpovp", Label: "Mean temperature", Unit: "°C", Agg: AggMean, Weatherbox: "mean C"},
	{PID: 137, Name: "tmax", Label: "Mean daily maximum", Unit: "°C", Agg: AggMean, Weatherbox: "high C"},
	{PID: 138, Name: "tmin", Label: "Mean daily minimum", Unit: "°C", Agg: AggMean, Weatherbox: "low C"},
	{PID: 139, Name: "tabsmax", Label: "Absolute maximum", Unit: "°C", Agg: AggMax, Weatherbox: "record high C"},
	{PID: 140, Name: "tabsmin", Label: "Absolute minimum", Unit: "°C", Agg: AggMin, Weatherbox: "record low C"},
	{PID: 141, Name: "padavine", Label: "Precipitation", Unit: "mm", Agg: AggSum, Weatherbox: "precipitation mm"},
	{PID: 143, Name: "novisneg", Label: "New snow", Unit: "cm", Agg: AggSum, Weatherbox: "snow cm"},
	{PID: 144, Name: "sonce", Label: "Sunshine duration", Unit: "h", Agg: AggSum, Weatherbox: "sun"},
	{PID: 145, Name: "oblacnost", Label: "Mean cloud cover", Unit: "%", Agg: AggMean},
	{PID: 146, Name: "vlaga", Label: "Mean relative humidity", Unit: "%", Agg: AggMean, Weatherbox: "humidity"},
	{PID: 147, Name: "stdni_pad_nad01", Label: "Precipitation days", Unit: "days", Agg: AggSum, Weatherbox: "precipitation days"},
	{PID: 148, Name: "stdni_pad_nad10", Label: "Days over 10 mm", Unit: "days", Agg: AggSum},
	{PID: 149, Name: "stdni_sneg", Label: "Snow-cover days", Unit: "days", Agg: AggSum, Weatherbox: "snow days"},
	{PID: 150, Name: "stdni_nevihta", Label: "Thunderstorm days", Unit: "days", Agg: AggSum},
	{PID: 151, Name: "stdni_megla", Label: "Fog days", Unit: "days", Agg: AggSum},
	{PID: 152, Name: "tlak", Label: "Mean air pressure", Unit: "hPa", Agg: AggMean},
	{PID: 153, Name: "veter", Label: "Mean wind speed", Unit: "m/s", Agg: AggMean},
}

var variablesByName = func() map[string]Variable {
	m := make(map[string]Variable, len(Variables))
	for _, v := range Variables {
		m[v.Name] = v
	}
	return m
}()

// VariableIDs returns every tracked PID, for building data.xml queries.
func VariableIDs() []int {
	ids := make([]int, len(Variables))
	for i, v := range Variables {
		ids[i] = v.PID
	}
	return ids
}

// VariableByName looks up a variable by its upstream field name.
func VariableByName(name string) (Variable, bool) {
	v, ok := variablesByName[name]
	return v, ok
}
