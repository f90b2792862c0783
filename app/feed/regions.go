package feed

import (
	"strings"
)

// regionCities maps each Italian region to the city names that imply it.
// Used only as a fallback when a feed supplies no explicit region field.
// Ordered so that a location mentioning cities of several regions always
// resolves to the same, earliest-listed region.
var regionCities = []struct {
	region string
	cities []string
}{
	{"lombardia", []string{"milan", "milano", "bergamo", "brescia", "como", "cremona", "lecco", "lodi", "mantova", "monza", "pavia", "sondrio", "varese"}},
	{"lazio", []string{"roma", "rome", "viterbo", "rieti", "frosinone", "latina"}},
	{"piemonte", []string{"torino", "turin", "asti", "novara", "cuneo", "alessandria", "biella", "verbania", "vercelli"}},
	{"veneto", []string{"venezia", "venice", "verona", "padova", "vicenza", "treviso", "belluno", "rovigo"}},
	{"emilia-romagna", []string{"bologna", "modena", "parma", "ferrara", "ravenna", "reggio emilia", "forlì", "cesena", "piacenza", "rimini"}},
	{"toscana", []string{"firenze", "florence", "siena", "pisa", "livorno", "arezzo", "grosseto", "lucca", "massa", "pistoia", "prato"}},
	{"campania", []string{"napoli", "naples", "salerno", "caserta", "avellino", "benevento"}},
	{"sicilia", []string{"palermo", "catania", "messina", "agrigento", "trapani", "siracusa", "ragusa", "caltanissetta", "enna"}},
	{"puglia", []string{"bari", "lecce", "taranto", "foggia", "brindisi", "barletta"}},
	{"liguria", []string{"genova", "genoa", "savona", "la spezia", "imperia"}},
	{"trentino-alto adige", []string{"trento", "bolzano", "bozen"}},
	{"friuli-venezia giulia", []string{"trieste", "udine", "pordenone", "gorizia"}},
	{"marche", []string{"ancona", "pesaro", "urbino", "macerata", "fermo", "ascoli piceno"}},
	{"calabria", []string{"catanzaro", "reggio calabria", "cosenza", "vibo valentia", "crotone"}},
	{"sardegna", []string{"cagliari", "sassari", "nuoro", "oristano", "olbia"}},
	{"abruzzo", []string{"l'aquila", "pescara", "chieti", "teramo"}},
	{"umbria", []string{"perugia", "terni"}},
	{"basilicata", []string{"potenza", "matera"}},
	{"molise", []string{"campobasso", "isernia"}},
	{"valle d'aosta", []string{"aosta"}},
}

// InferRegion guesses the region from a cleaned location string. Returns ""
// when no known city name appears.
func InferRegion(location string) string {
	if location == "" {
		return ""
	}
	l := strings.ToLower(location)
	for _, entry := range regionCities {
		for _, city := range entry.cities {
			if strings.Contains(l, city) {
				return entry.region
			}
		}
	}
	return ""
}
