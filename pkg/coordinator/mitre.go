package coordinator

import "github.com/edgewatch/vigil/pkg/models"

// mitreMapping is the static ATT&CK classification per threat type.
// geo_anomaly and rate_limit_breach have no stable mapping and stay empty.
type mitreMapping struct {
	tactics    []string
	techniques []string
}

var mitreTable = map[models.ThreatType]mitreMapping{
	models.ThreatBotTraffic: {
		tactics:    []string{"initial_access"},
		techniques: []string{"application_layer_protocol"},
	},
	models.ThreatCredentialStuffing: {
		tactics:    []string{"credential_access"},
		techniques: []string{"credential_stuffing", "brute_force"},
	},
	models.ThreatAccountTakeover: {
		tactics:    []string{"credential_access", "persistence"},
		techniques: []string{"valid_accounts"},
	},
	models.ThreatDataScraping: {
		tactics:    []string{"collection"},
		techniques: []string{"automated_collection", "data_from_info_repos"},
	},
	models.ThreatBruteForce: {
		tactics:    []string{"credential_access"},
		techniques: []string{"brute_force"},
	},
}

// mitreFor returns the tactics and techniques for a threat type. Unmapped
// types return empty non-nil slices so the record fields marshal as [].
func mitreFor(threat models.ThreatType) ([]string, []string) {
	m, ok := mitreTable[threat]
	if !ok {
		return []string{}, []string{}
	}
	return m.tactics, m.techniques
}
