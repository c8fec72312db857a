// Package geo は求人検索で利用する距離計算と近い順の並び替えを提供します。
package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm は大円距離の計算に用いる地球半径 (km) です。
const EarthRadiusKm = 6371.0

// Point は緯度経度の組です。(0, 0) は位置不明を表します。
type Point struct {
	Lat float64
	Lon float64
}

// Known は位置情報が登録済みかどうかを返します。
func (p Point) Known() bool {
	return p.Lat != 0 || p.Lon != 0
}

// DistanceKm は 2 点間の大圏距離を haversine 公式で求めます。
// NaN や Inf を含む入力に対しては NaN を返します。
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	for _, v := range [...]float64{lat1, lon1, lat2, lon2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN()
		}
	}

	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// 丸め誤差で 1 をわずかに超えると Sqrt(1-a) が NaN になる
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Distance は Point 同士の距離 (km) を返します。
func Distance(a, b Point) float64 {
	return DistanceKm(a.Lat, a.Lon, b.Lat, b.Lon)
}

// SortByDistance は origin から近い順に items を安定ソートします。
// 位置不明の要素は末尾に並びます。
func SortByDistance[T any](items []T, origin Point, locate func(T) Point) {
	keys := make([]float64, len(items))
	for i, item := range items {
		keys[i] = sortKey(origin, locate(item))
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]] < keys[idx[b]]
	})

	sorted := make([]T, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
}

// WithinRadius は origin から radiusKm 以内の要素だけを返します。
// 位置不明の要素は含めません。
func WithinRadius[T any](items []T, origin Point, radiusKm float64, locate func(T) Point) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		p := locate(item)
		if !p.Known() {
			continue
		}
		if d := Distance(origin, p); d <= radiusKm {
			out = append(out, item)
		}
	}
	return out
}

func sortKey(origin, p Point) float64 {
	if !p.Known() {
		return math.Inf(1)
	}
	d := Distance(origin, p)
	if math.IsNaN(d) {
		return math.Inf(1)
	}
	return d
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
