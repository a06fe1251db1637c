package statistics

const seriesLen = 3600

//HashRate keeps one hour of per-second search samples in a ring buffer
type HashRate struct {
	dataSeries [seriesLen]float64
	currentPos int
}

//Add records the next one-second sample
func (hr *HashRate) Add(num float64) {
	hr.currentPos = (hr.currentPos + 1) % seriesLen
	hr.dataSeries[hr.currentPos] = num
}

//RecentNSum sums the most recent recentn samples
func (hr *HashRate) RecentNSum(recentn int) (sum float64) {
	if recentn > seriesLen {
		recentn = seriesLen
	}
	pos := 0
	for i := 0; i < recentn; i++ {
		pos = (hr.currentPos - i)
		if pos < 0 {
			pos += seriesLen
		}
		sum += hr.dataSeries[pos]
	}
	return
}

//RecentNAvg averages the most recent recentn samples
func (hr *HashRate) RecentNAvg(recentn int) float64 {
	if recentn <= 0 {
		return 0
	}
	return hr.RecentNSum(recentn) / float64(recentn)
}
