package report

// USPS two-letter codes for states, DC and territories.
var stateCodes = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "AS": true, "GU": true, "MP": true,
	"PR": true, "VI": true,
}

// Full names, uppercased, matched against 1-3 word windows of the input.
var stateNames = map[string]string{
	"ALABAMA":        "AL",
	"ALASKA":         "AK",
	"ARIZONA":        "AZ",
	"ARKANSAS":       "AR",
	"CALIFORNIA":     "CA",
	"COLORADO":       "CO",
	"CONNECTICUT":    "CT",
	"DELAWARE":       "DE",
	"FLORIDA":        "FL",
	"GEORGIA":        "GA",
	"HAWAII":         "HI",
	"IDAHO":          "ID",
	"ILLINOIS":       "IL",
	"INDIANA":        "IN",
	"IOWA":           "IA",
	"KANSAS":         "KS",
	"KENTUCKY":       "KY",
	"LOUISIANA":      "LA",
	"MAINE":          "ME",
	"MARYLAND":       "MD",
	"MASSACHUSETTS":  "MA",
	"MICHIGAN":       "MI",
	"MINNESOTA":      "MN",
	"MISSISSIPPI":    "MS",
	"MISSOURI":       "MO",
	"MONTANA":        "MT",
	"NEBRASKA":       "NE",
	"NEVADA":         "NV",
	"NEW HAMPSHIRE":  "NH",
	"NEW JERSEY":     "NJ",
	"NEW MEXICO":     "NM",
	"NEW YORK":       "NY",
	"NORTH CAROLINA": "NC",
	"NORTH DAKOTA":   "ND",
	"OHIO":           "OH",
	"OKLAHOMA":       "OK",
	"OREGON":         "OR",
	"PENNSYLVANIA":   "PA",
	"RHODE ISLAND":   "RI",
	"SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA":   "SD",
	"TENNESSEE":      "TN",
	"TEXAS":          "TX",
	"UTAH":           "UT",
	"VERMONT":        "VT",
	"VIRGINIA":       "VA",
	"WASHINGTON":     "WA",
	"WEST VIRGINIA":  "WV",
	"WISCONSIN":      "WI",
	"WYOMING":        "WY",

	"DISTRICT OF COLUMBIA": "DC",
	"AMERICAN SAMOA":       "AS",
	"GUAM":                 "GU",
	"NORTHERN MARIANA ISLANDS": "MP",
	"PUERTO RICO":          "PR",
	"VIRGIN ISLANDS":       "VI",
	"US VIRGIN ISLANDS":    "VI",
}
