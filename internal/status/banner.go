package status

import (
	"github.com/beaconwatch/beacon/internal/storage"
)

// Banner source and status values.
const (
	SourceIncident    = "incident"
	SourceMonitors    = "monitors"
	SourceMaintenance = "maintenance"

	BannerOperational = "operational"
	BannerPartial     = "partial_outage"
	BannerMajor       = "major_outage"
	BannerUnknown     = "unknown"
	BannerMaintenance = "maintenance"
)

// majorOutageRatio is the down-monitor share at which the banner
// escalates from partial to major.
const majorOutageRatio = 0.3

// deriveBanner picks the page banner by priority: incidents, then
// down monitors, then unknown monitors, then maintenance, then
// operational.
func deriveBanner(incidents []*storage.Incident, activeMaint []*storage.MaintenanceWindow,
	counts map[string]int, total int) Banner {

	if len(incidents) > 0 {
		top := incidents[0]
		for _, inc := range incidents[1:] {
			if inc.StartedAt > top.StartedAt {
				top = inc
			}
		}
		return Banner{
			Source:   SourceIncident,
			Status:   bannerForImpact(maxImpact(incidents)),
			Incident: top,
		}
	}

	if down := counts[storage.StatusDown]; down > 0 && total > 0 {
		ratio := float64(down) / float64(total)
		status := BannerPartial
		if ratio >= majorOutageRatio {
			status = BannerMajor
		}
		return Banner{Source: SourceMonitors, Status: status, DownRatio: &ratio}
	}

	if counts[storage.StatusUnknown] > 0 {
		return Banner{Source: SourceMonitors, Status: BannerUnknown}
	}

	if len(activeMaint) > 0 {
		return Banner{Source: SourceMaintenance, Status: BannerMaintenance, Maintenance: activeMaint[0]}
	}
	if counts[storage.StatusMaintenance] > 0 {
		return Banner{Source: SourceMonitors, Status: BannerMaintenance}
	}

	return Banner{Source: SourceMonitors, Status: BannerOperational}
}

func maxImpact(incidents []*storage.Incident) string {
	rank := map[string]int{
		storage.ImpactNone:     0,
		storage.ImpactMinor:    1,
		storage.ImpactMajor:    2,
		storage.ImpactCritical: 3,
	}
	top := storage.ImpactNone
	for _, inc := range incidents {
		if rank[inc.Impact] > rank[top] {
			top = inc.Impact
		}
	}
	return top
}

func bannerForImpact(impact string) string {
	switch impact {
	case storage.ImpactCritical, storage.ImpactMajor:
		return BannerMajor
	case storage.ImpactMinor:
		return BannerPartial
	}
	return BannerOperational
}
