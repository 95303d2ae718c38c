package normalize

// DefaultDepartments maps known recruitment portals to their official names.
// Keys match the hostname exactly or as a parent domain.
var DefaultDepartments = map[string]string{
	"ssc.nic.in":            "Staff Selection Commission",
	"ssc.gov.in":            "Staff Selection Commission",
	"upsc.gov.in":           "Union Public Service Commission",
	"ibps.in":               "Institute of Banking Personnel Selection",
	"indianrailways.gov.in": "Ministry of Railways",
	"rrbcdg.gov.in":         "Railway Recruitment Board",
	"rrcb.gov.in":           "Railway Recruitment Cell",
	"sbi.co.in":             "State Bank of India",
	"rbi.org.in":            "Reserve Bank of India",
	"drdo.gov.in":           "Defence Research and Development Organisation",
	"isro.gov.in":           "Indian Space Research Organisation",
	"joinindianarmy.nic.in": "Indian Army",
	"joinindiannavy.gov.in": "Indian Navy",
	"agnipathvayu.cdac.in":  "Indian Air Force",
	"ncs.gov.in":            "National Career Service",
	"nta.ac.in":             "National Testing Agency",
	"bpsc.bih.nic.in":       "Bihar Public Service Commission",
	"uppsc.up.nic.in":       "Uttar Pradesh Public Service Commission",
	"mpsc.gov.in":           "Maharashtra Public Service Commission",
	"tnpsc.gov.in":          "Tamil Nadu Public Service Commission",
}
