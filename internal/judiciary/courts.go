package judiciary

// Court registry for the Legal Reference System. Codes follow the LRS search
// form, not the neutral citation prefixes.

// Courts maps court codes to full names.
var Courts = map[string]string{
	"CFA":  "Court of Final Appeal",
	"CA":   "Court of Appeal",
	"CFI":  "Court of First Instance",
	"DC":   "District Court",
	"FC":   "Family Court",
	"LT":   "Lands Tribunal",
	"LAB":  "Labour Tribunal",
	"SCT":  "Small Claims Tribunal",
	"KCCC": "Kowloon City Magistrates' Courts",
	"ESCC": "Eastern Magistrates' Courts",
	"KTCC": "Kwun Tong Magistrates' Courts",
	"STCC": "Sha Tin Magistrates' Courts",
	"FLCC": "Fanling Magistrates' Courts",
	"TMCC": "Tuen Mun Magistrates' Courts",
	"TWCC": "Tsuen Wan Magistrates' Courts",
	"WKCC": "West Kowloon Magistrates' Courts",
}

// CourtHierarchy ranks courts, 1 being the apex.
var CourtHierarchy = map[string]int{
	"CFA":  1,
	"CA":   2,
	"CFI":  3,
	"DC":   4,
	"FC":   4,
	"LT":   4,
	"LAB":  5,
	"SCT":  5,
	"KCCC": 5,
	"ESCC": 5,
	"KTCC": 5,
	"STCC": 5,
	"FLCC": 5,
	"TMCC": 5,
	"TWCC": 5,
	"WKCC": 5,
}

// CitationCodes maps a court code to its neutral citation prefix.
var CitationCodes = map[string]string{
	"CFA": "HKCFA",
	"CA":  "HKCA",
	"CFI": "HKCFI",
	"DC":  "HKDC",
	"FC":  "HKFC",
	"LT":  "HKLT",
	"LAB": "HKLAB",
	"SCT": "HKSCT",
}

// CaseNumberPrefixes lists the case number prefixes issued by each court.
var CaseNumberPrefixes = map[string][]string{
	"CFA": {"FACV", "FACC", "FAMV", "FAMC", "FAMP"},
	"CA":  {"CACV", "CACC", "CAAR", "CAMP", "CAQL"},
	"CFI": {
		"HCAL", "HCMP", "HCCT", "HCCL", "HCSD", "HCPI", "HCMC", "HCCW",
		"HCAJ", "HCAP", "HCBD", "HCBI", "HCBS", "HCCM", "HCCP", "HCCV",
		"HCEA", "HCLA", "HCMA", "HCMH", "HCOA", "HCRC", "HCSA", "HCWS",
	},
	"DC": {"DCCC", "DCEC", "DCMP", "DCPI", "DCCJ", "DCEO", "DCTC"},
	"FC": {"FCMC", "FCMP", "FCJA", "FCRE"},
	"LT": {"LDBM", "LDMR", "LDCS", "LDPD", "LDRT", "LDLA", "LDLR", "LDMT"},
}

var prefixToCourt = map[string]string{
	"FACC": "CFA",
	"FACV": "CFA",
	"FAMV": "CFA",
	"CACC": "CA",
	"CACV": "CA",
	"CAAR": "CA",
	"HCCC": "CFI",
	"HCAL": "CFI",
	"HCMP": "CFI",
	"HCA":  "CFI",
	"HCCT": "CFI",
	"DCCC": "DC",
	"DCCJ": "DC",
	"FCMC": "FC",
	"LDBM": "LT",
	"LDCS": "LT",
}

// CourtForCasePrefix maps a case number prefix to its court code, or "".
func CourtForCasePrefix(prefix string) string {
	return prefixToCourt[prefix]
}
