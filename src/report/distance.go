package report

import (
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/stat"

	"github.com/Nahed-ElMalki/Projet-DM-Bikeshare/src/processor"
)

// EarthRadiusKm 地球平均半径
const EarthRadiusKm = 6371.0088

// CoordinateColumns 起终点坐标列名
type CoordinateColumns struct {
	StartLat, StartLng, EndLat, EndLng string
}

// DistanceStats 起点到终点的直线(大圆)距离统计，单位公里
type DistanceStats struct {
	Count    int     `json:"count"`
	Skipped  int     `json:"skipped"` // 坐标缺失或无法解析的行程
	MeanKm   float64 `json:"mean_km"`
	MedianKm float64 `json:"median_km"`
	MaxKm    float64 `json:"max_km"`
}

// GreatCircleKm 两点间的大圆距离
func GreatCircleKm(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// DistanceSummary 坐标列缺失时返回零值统计
func DistanceSummary(trips []processor.CleanedTrip, cols CoordinateColumns) DistanceStats {
	var stats DistanceStats
	dist := make([]float64, 0, len(trips))
	for _, t := range trips {
		lat1, ok1 := coord(t, cols.StartLat)
		lng1, ok2 := coord(t, cols.StartLng)
		lat2, ok3 := coord(t, cols.EndLat)
		lng2, ok4 := coord(t, cols.EndLng)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			stats.Skipped++
			continue
		}
		dist = append(dist, GreatCircleKm(lat1, lng1, lat2, lng2))
	}
	if len(dist) == 0 {
		return stats
	}

	sort.Float64s(dist)
	stats.Count = len(dist)
	stats.MeanKm = stat.Mean(dist, nil)
	stats.MedianKm = median(dist)
	stats.MaxKm = dist[len(dist)-1]
	return stats
}

func coord(t processor.CleanedTrip, col string) (float64, bool) {
	if col == "" {
		return 0, false
	}
	raw, ok := t.Field(col)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
