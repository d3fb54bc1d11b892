package raster

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	epsgURIPrefix = "http://www.opengis.net/def/crs/EPSG/0/"
	crsURNPrefix  = "urn:ogc:def:crs:"
	xcrsURNPrefix = "urn:x-ogc:def:crs:"
)

// EPSGURI formats an EPSG code in the OGC http URI form.
func EPSGURI(code int) string {
	return fmt.Sprintf("%s%d", epsgURIPrefix, code)
}

// EPSGURN formats an EPSG code in the OGC URN form.
func EPSGURN(code int) string {
	return fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", code)
}

// IsCRS84 reports whether def names the longitude/latitude ordered
// WGS84 coordinate system.
func IsCRS84(def string) bool {
	d := strings.ToLower(strings.TrimSpace(def))
	return d == "crs:84" || d == "urn:ogc:def:crs:ogc:1.3:crs84" ||
		d == "urn:ogc:def:crs:ogc::crs84" || d == "http://www.opengis.net/def/crs/ogc/1.3/crs84"
}

// IsImageCRS reports whether def is the pixel/line pseudo coordinate
// system, either as the bare token or as one of its URN variants.
func IsImageCRS(def string) bool {
	d := strings.TrimSpace(def)
	if strings.EqualFold(d, "imageCRS") {
		return true
	}
	if len(d) >= len(crsURNPrefix)+8 && strings.EqualFold(d[:len(crsURNPrefix)], crsURNPrefix) &&
		strings.EqualFold(d[len(d)-8:], "imageCRS") {
		return true
	}
	return false
}

// ParseEPSG extracts the EPSG code from the common textual forms:
// EPSG:n, init=epsg:n, urn:ogc:def:crs:EPSG:[version]:n and
// http://www.opengis.net/def/crs/EPSG/0/n. CRS84 maps to 4326.
func ParseEPSG(def string) (int, bool) {
	d := strings.TrimSpace(def)
	l := strings.ToLower(d)

	if IsCRS84(d) {
		return 4326, true
	}

	var tail string
	switch {
	case strings.HasPrefix(l, "epsg:"):
		tail = d[5:]
	case strings.HasPrefix(l, "+init=epsg:"):
		tail = d[11:]
	case strings.HasPrefix(l, "init=epsg:"):
		tail = d[10:]
	case strings.HasPrefix(l, strings.ToLower(epsgURIPrefix)):
		tail = d[len(epsgURIPrefix):]
	case strings.HasPrefix(l, crsURNPrefix+"epsg:"), strings.HasPrefix(l, xcrsURNPrefix+"epsg:"):
		idx := strings.LastIndex(d, ":")
		tail = d[idx+1:]
	default:
		return 0, false
	}

	code, err := strconv.Atoi(strings.TrimSpace(tail))
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

// NormalizeEPSG rewrites any recognised EPSG form to EPSG:n. Other
// definitions are returned unchanged.
func NormalizeEPSG(def string) string {
	if code, ok := ParseEPSG(def); ok {
		return fmt.Sprintf("EPSG:%d", code)
	}
	return def
}

// NeedsAxisSwap reports whether coordinates expressed in def come in
// northing/easting (latitude/longitude) order. Only the URN and http URI
// forms carry the authority axis order; EPSG:n and CRS84 are always
// easting first.
func NeedsAxisSwap(def string) bool {
	if IsCRS84(def) {
		return false
	}
	l := strings.ToLower(strings.TrimSpace(def))
	if !strings.HasPrefix(l, crsURNPrefix) && !strings.HasPrefix(l, xcrsURNPrefix) &&
		!strings.HasPrefix(l, strings.ToLower(epsgURIPrefix)) {
		return false
	}
	code, ok := ParseEPSG(def)
	if !ok {
		return false
	}
	return AxisInverted(code)
}

// projected systems whose EPSG definition puts northing first
var northingFirst = map[int]bool{
	2036: true, 2044: true, 2045: true, 2065: true, 2081: true, 2082: true, 2083: true,
	2085: true, 2086: true, 2091: true, 2092: true, 2093: true, 2096: true, 2097: true,
	2098: true, 2105: true, 2166: true, 2167: true, 2168: true, 2169: true, 2170: true,
	2171: true, 2172: true, 2173: true, 2174: true, 2175: true, 2176: true, 2177: true,
	2178: true, 2179: true, 2180: true, 3006: true, 3034: true, 3035: true, 3038: true,
	3039: true, 3040: true, 3041: true, 3042: true, 3043: true, 3044: true, 3045: true,
	3046: true, 3047: true, 3048: true, 3049: true, 3050: true, 3051: true, 3058: true,
	3059: true, 3068: true, 3114: true, 3115: true, 3116: true, 3117: true, 3118: true,
	3120: true, 3126: true, 3127: true, 3128: true, 3129: true, 3130: true, 3131: true,
	3132: true, 3133: true, 3134: true, 3135: true, 3136: true, 3137: true, 3138: true,
	3139: true, 3140: true, 3146: true, 3147: true, 3150: true, 3151: true, 3152: true,
	3300: true, 3301: true, 3328: true, 3329: true, 3330: true, 3331: true, 3332: true,
	3333: true, 3334: true, 3335: true, 3346: true, 3350: true, 3351: true, 3352: true,
	3366: true, 3386: true, 3387: true, 3407: true, 3416: true, 3764: true, 3788: true,
	3789: true, 3790: true, 3791: true, 3793: true, 3795: true, 3796: true, 3819: true,
	3821: true, 3824: true, 3889: true, 3906: true, 3907: true, 3908: true, 3909: true,
	3910: true, 3911: true, 5048: true, 5105: true, 5106: true, 5107: true, 5108: true,
	5109: true, 5110: true, 5111: true, 5112: true, 5113: true, 5114: true, 5115: true,
	5116: true, 5117: true, 5118: true, 5119: true, 5120: true, 5121: true, 5122: true,
	5123: true, 5124: true, 5125: true, 5126: true, 5127: true, 5128: true, 5129: true,
	5130: true, 5167: true, 5168: true, 5169: true, 5170: true, 5171: true, 5172: true,
	5173: true, 5174: true, 5175: true, 5176: true, 5177: true, 5178: true, 5179: true,
	5180: true, 5181: true, 5182: true, 5183: true, 5184: true, 5185: true, 5186: true,
	5187: true, 5188: true, 5224: true, 5225: true, 5228: true, 5229: true, 5233: true,
	5245: true, 5246: true, 5251: true, 5252: true, 5253: true, 5254: true, 5255: true,
	5256: true, 5257: true, 5258: true, 5259: true, 5263: true, 5264: true, 5269: true,
	5270: true, 5271: true, 5272: true, 5273: true, 5274: true, 5275: true, 5801: true,
	5802: true, 5803: true, 5804: true, 5808: true, 5809: true, 5810: true, 5811: true,
	5812: true, 5813: true, 5814: true, 5815: true, 5816: true, 20004: true, 20005: true,
	20006: true, 20007: true, 20008: true, 20009: true, 20010: true, 20011: true,
	20012: true, 20013: true, 20014: true, 20015: true, 20016: true, 20017: true,
	20018: true, 20019: true, 20020: true, 20021: true, 20022: true, 20023: true,
	20024: true, 20025: true, 20026: true, 20027: true, 20028: true, 20029: true,
	20030: true, 20031: true, 20032: true, 20064: true, 20065: true, 20066: true,
	20067: true, 20068: true, 20069: true, 20070: true, 20071: true, 20072: true,
	20073: true, 20074: true, 20075: true, 20076: true, 20077: true, 20078: true,
	20079: true, 20080: true, 20081: true, 20082: true, 20083: true, 20084: true,
	20085: true, 20086: true, 20087: true, 20088: true, 20089: true, 20090: true,
	20091: true, 20092: true, 21413: true, 21414: true, 21415: true, 21416: true,
	21417: true, 21418: true, 21419: true, 21420: true, 21421: true, 21422: true,
	21423: true, 21453: true, 21454: true, 21455: true, 21456: true, 21457: true,
	21458: true, 21459: true, 21460: true, 21461: true, 21462: true, 21463: true,
	21473: true, 21474: true, 21475: true, 21476: true, 21477: true, 21478: true,
	21479: true, 21480: true, 21481: true, 21482: true, 21483: true, 21896: true,
	21897: true, 21898: true, 21899: true, 22171: true, 22172: true, 22173: true,
	22174: true, 22175: true, 22176: true, 22177: true, 22181: true, 22182: true,
	22183: true, 22184: true, 22185: true, 22186: true, 22187: true, 22191: true,
	22192: true, 22193: true, 22194: true, 22195: true, 22196: true, 22197: true,
	25884: true, 27205: true, 27206: true, 27207: true, 27208: true, 27209: true,
	27210: true, 27211: true, 27212: true, 27213: true, 27214: true, 27215: true,
	27216: true, 27217: true, 27218: true, 27219: true, 27220: true, 27221: true,
	27222: true, 27223: true, 27224: true, 27225: true, 27226: true, 27227: true,
	27228: true, 27229: true, 27230: true, 27231: true, 27232: true, 27391: true,
	27392: true, 27393: true, 27394: true, 27395: true, 27396: true, 27397: true,
	27398: true, 27492: true, 28402: true, 28403: true, 28404: true, 28405: true,
	28406: true, 28407: true, 28408: true, 28409: true, 28410: true, 28411: true,
	28412: true, 28413: true, 28414: true, 28415: true, 28416: true, 28417: true,
	28418: true, 28419: true, 28420: true, 28421: true, 28422: true, 28423: true,
	28424: true, 28425: true, 28426: true, 28427: true, 28428: true, 28429: true,
	28430: true, 28431: true, 28432: true, 28462: true, 28463: true, 28464: true,
	28465: true, 28466: true, 28467: true, 28468: true, 28469: true, 28470: true,
	28471: true, 28472: true, 28473: true, 28474: true, 28475: true, 28476: true,
	28477: true, 28478: true, 28479: true, 28480: true, 28481: true, 28482: true,
	28483: true, 28484: true, 28485: true, 28486: true, 28487: true, 28488: true,
	28489: true, 28490: true, 28491: true, 28492: true, 29701: true, 29702: true,
	30161: true, 30162: true, 30163: true, 30164: true, 30165: true, 30166: true,
	30167: true, 30168: true, 30169: true, 30170: true, 30171: true, 30172: true,
	30173: true, 30174: true, 30175: true, 30176: true, 30177: true, 30178: true,
	30179: true, 30800: true, 31251: true, 31252: true, 31253: true, 31254: true,
	31255: true, 31256: true, 31257: true, 31258: true, 31259: true, 31275: true,
	31276: true, 31277: true, 31278: true, 31279: true, 31281: true, 31282: true,
	31283: true, 31284: true, 31285: true, 31286: true, 31287: true, 31288: true,
	31289: true, 31290: true, 31466: true, 31467: true, 31468: true, 31469: true,
	31700: true,
}

// geocentric systems inside the geographic code range
var geocentric = map[int]bool{
	4328: true, 4330: true, 4331: true, 4332: true, 4334: true, 4336: true, 4338: true,
	4340: true, 4342: true, 4344: true, 4346: true, 4348: true, 4350: true, 4352: true,
	4354: true, 4356: true, 4358: true, 4360: true, 4362: true, 4364: true, 4366: true,
	4368: true, 4370: true, 4372: true, 4374: true, 4376: true, 4378: true, 4380: true,
	4382: true, 4384: true, 4386: true, 4388: true, 4465: true, 4468: true, 4473: true,
	4479: true, 4481: true, 4556: true, 4882: true, 4884: true, 4886: true, 4888: true,
	4890: true, 4892: true, 4894: true, 4896: true, 4897: true, 4899: true, 4906: true,
	4910: true, 4911: true, 4912: true, 4913: true, 4914: true, 4915: true, 4916: true,
	4917: true, 4918: true, 4919: true, 4920: true, 4922: true, 4924: true, 4926: true,
	4928: true, 4930: true, 4932: true, 4934: true, 4936: true, 4938: true, 4940: true,
	4942: true, 4944: true, 4946: true, 4948: true, 4950: true, 4952: true, 4954: true,
	4956: true, 4958: true, 4960: true, 4962: true, 4964: true, 4966: true, 4970: true,
	4974: true, 4976: true, 4978: true, 4980: true, 4982: true, 4984: true, 4986: true,
	4988: true, 4990: true, 4992: true, 4994: true, 4996: true, 4998: true,
}

// AxisInverted reports whether the EPSG definition of code orders its
// axes northing (or latitude) first.
func AxisInverted(code int) bool {
	if code >= 4001 && code <= 4999 {
		return !geocentric[code]
	}
	return northingFirst[code]
}
