package matching

// builtinRegions maps normalized placement cities to their broader region.
// Two different cities in the same region earn the partial location tier.
// Cities absent from the table only ever exact-match.
var builtinRegions = map[string]string{
	"london":     "uk",
	"manchester": "uk",
	"birmingham": "uk",
	"dublin":     "ireland",
	"new york":   "us east",
	"boston":     "us east",
	"toronto":    "canada",
	"vancouver":  "canada",
	"san francisco": "us west",
	"los angeles":   "us west",
	"berlin":    "germany",
	"munich":    "germany",
	"paris":     "france",
	"amsterdam": "benelux",
	"rotterdam": "benelux",
	"madrid":    "spain",
	"barcelona": "spain",
	"milan":     "italy",
	"rome":      "italy",
	"stockholm": "nordics",
	"copenhagen": "nordics",
	"sydney":    "australia",
	"melbourne": "australia",
	"brisbane":  "australia",
	"auckland":  "new zealand",
	"singapore": "singapore",
	"hong kong": "hong kong",
	"tokyo":     "japan",
	"osaka":     "japan",
	"seoul":     "south korea",
	"bangkok":   "thailand",
	"dubai":     "uae",
	"abu dhabi": "uae",
	"cape town": "south africa",
	"johannesburg": "south africa",
}
