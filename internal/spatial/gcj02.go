package spatial

import "math"

// WGS84 -> GCJ-02 (火星坐标系) 转换参数
const (
	gcjSemiMajorAxis = 6378245.0
	gcjEccentricity  = 0.00669342162296594323
)

// OutOfChina reports whether a WGS84 point lies outside the mainland China
// bounding box, where no GCJ-02 offset applies.
func OutOfChina(lng, lat float64) bool {
	return lng < 72.004 || lng > 137.8347 || lat < 0.8293 || lat > 55.8271
}

// TransformCoord converts a WGS84 lng/lat pair to GCJ-02. The AutoNavi tile
// layer is drawn in GCJ-02, so every coordinate handed to the map goes through
// here. Points outside China are returned unchanged.
//
// The float64() conversions stop the compiler from fusing multiply-adds, which
// would change the low bits on arm64 and break parity with the reference formula.
func TransformCoord(lng, lat float64) (float64, float64) {
	if OutOfChina(lng, lat) {
		return lng, lat
	}

	dLat := transformLat(lng-105.0, lat-35.0)
	dLng := transformLng(lng-105.0, lat-35.0)
	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - float64(gcjEccentricity*magic*magic)
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((gcjSemiMajorAxis * (1 - gcjEccentricity)) / (magic * sqrtMagic) * math.Pi)
	dLng = (dLng * 180.0) / (gcjSemiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)
	return lng + dLng, lat + dLat
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + float64(2.0*x) + float64(3.0*y) + float64(0.2*y*y) + float64(0.1*x*y) + float64(0.2*math.Sqrt(math.Abs(x)))
	ret += (float64(20.0*math.Sin(6.0*x*math.Pi)) + float64(20.0*math.Sin(2.0*x*math.Pi))) * 2.0 / 3.0
	ret += (float64(20.0*math.Sin(y*math.Pi)) + float64(40.0*math.Sin(y/3.0*math.Pi))) * 2.0 / 3.0
	ret += (float64(160.0*math.Sin(y/12.0*math.Pi)) + float64(320*math.Sin(y*math.Pi/30.0))) * 2.0 / 3.0
	return ret
}

func transformLng(x, y float64) float64 {
	ret := 300.0 + x + float64(2.0*y) + float64(0.1*x*x) + float64(0.1*x*y) + float64(0.1*math.Sqrt(math.Abs(x)))
	ret += (float64(20.0*math.Sin(6.0*x*math.Pi)) + float64(20.0*math.Sin(2.0*x*math.Pi))) * 2.0 / 3.0
	ret += (float64(20.0*math.Sin(x*math.Pi)) + float64(40.0*math.Sin(x/3.0*math.Pi))) * 2.0 / 3.0
	ret += (float64(150.0*math.Sin(x/12.0*math.Pi)) + float64(300.0*math.Sin(x/30.0*math.Pi))) * 2.0 / 3.0
	return ret
}
