package types

import "time"

// DomainStatistics holds per-domain running aggregates used to calibrate
// the adaptive reward: duration/step-count distributions and reward
// distribution, plus a success count. The maintenance logic (batch
// recompute and Welford-style incremental update) lives in
// internal/reward.DomainStatisticsCache; this type is the plain value.
type DomainStatistics struct {
	Domain           string    `json:"domain"`
	EpisodeCount     int       `json:"episode_count"`
	AvgDurationSecs  float64   `json:"avg_duration_secs"`
	P50DurationSecs  float64   `json:"p50_duration_secs"`
	P90DurationSecs  float64   `json:"p90_duration_secs"`
	AvgStepCount     float64   `json:"avg_step_count"`
	P50StepCount     int       `json:"p50_step_count"`
	P90StepCount     int       `json:"p90_step_count"`
	AvgReward        float64   `json:"avg_reward"`
	P50Reward        float64   `json:"p50_reward"`
	RewardStdDev     float64   `json:"reward_std_dev"`
	LastUpdated      time.Time `json:"last_updated"`
	SuccessCount     int       `json:"success_count"`
}

// NewDomainStatistics returns a zeroed statistics record for domain.
func NewDomainStatistics(domain string) *DomainStatistics {
	return &DomainStatistics{Domain: domain, LastUpdated: time.Now()}
}

// SuccessRate is SuccessCount/EpisodeCount, or 0 with no episodes.
func (d *DomainStatistics) SuccessRate() float64 {
	if d.EpisodeCount == 0 {
		return 0
	}
	return float64(d.SuccessCount) / float64(d.EpisodeCount)
}

// IsReliable reports whether there is enough data (>=5 episodes) for the
// adaptive reward to trust these statistics over the fixed baseline.
func (d *DomainStatistics) IsReliable() bool {
	return d.EpisodeCount >= 5
}

// IsStale reports whether the statistics are older than 7 days.
func (d *DomainStatistics) IsStale() bool {
	return time.Since(d.LastUpdated) > 7*24*time.Hour
}
