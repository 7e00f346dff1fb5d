package domain

import (
	"strconv"
	"strings"

	"github.com/autobot-tf/pricewatch/internal/apperror"
)

// SKU is the parsed form of an item identifier string such as "5021;6" or
// "30469;5;u108". The core treats SKUs as opaque keys; parsing exists for
// validation and display-name construction.
type SKU struct {
	Defindex int
	Quality  int

	Effect        int // unusual effect id, 0 = none
	Australium    bool
	Uncraftable   bool
	Festivized    bool
	Killstreak    int // 0 none, 1 basic, 2 specialized, 3 professional
	Wear          int // 0 = none, 1-5 otherwise
	TargetDef     int
	CrateSeries   int
	CraftNumber   int
	Paint         int
	StrangeBonus  bool
	PaintKit      int
	hasPaintKit   bool
	hasCrate      bool
	hasCraftNum   bool
	hasTargetDef  bool
	hasPaintColor bool
}

// Quality ids as the game schema defines them.
const (
	QualityNormal   = 0
	QualityGenuine  = 1
	QualityVintage  = 3
	QualityUnusual  = 5
	QualityUnique   = 6
	QualityStrange  = 11
	QualityHaunted  = 13
	QualityCollector = 14
	QualityDecorated = 15
)

var qualityNames = map[int]string{
	QualityNormal:    "Normal",
	QualityGenuine:   "Genuine",
	QualityVintage:   "Vintage",
	QualityUnusual:   "Unusual",
	QualityUnique:    "Unique",
	QualityStrange:   "Strange",
	QualityHaunted:   "Haunted",
	QualityCollector: "Collector's",
	QualityDecorated: "Decorated",
}

// QualityName returns the display name of a quality id, or empty for unknown.
func QualityName(quality int) string {
	return qualityNames[quality]
}

// ParseSKU parses and validates an item identifier. The first two segments
// must be a numeric defindex and quality; the remaining segments are
// attribute markers.
func ParseSKU(s string) (SKU, error) {
	parts := strings.Split(s, ";")
	if len(parts) < 2 {
		return SKU{}, apperror.New(apperror.CodeInvalidSKU,
			apperror.WithContext("sku "+s))
	}

	defindex, err := strconv.Atoi(parts[0])
	if err != nil || defindex < 0 {
		return SKU{}, apperror.New(apperror.CodeInvalidSKU,
			apperror.WithContext("bad defindex in sku "+s))
	}
	quality, err := strconv.Atoi(parts[1])
	if err != nil || quality < 0 {
		return SKU{}, apperror.New(apperror.CodeInvalidSKU,
			apperror.WithContext("bad quality in sku "+s))
	}

	sku := SKU{Defindex: defindex, Quality: quality}
	for _, part := range parts[2:] {
		switch {
		case part == "australium":
			sku.Australium = true
		case part == "uncraftable":
			sku.Uncraftable = true
		case part == "festive":
			sku.Festivized = true
		case part == "strange":
			sku.StrangeBonus = true
		case strings.HasPrefix(part, "kt-"):
			sku.Killstreak, _ = strconv.Atoi(part[3:])
		case strings.HasPrefix(part, "td-"):
			sku.TargetDef, _ = strconv.Atoi(part[3:])
			sku.hasTargetDef = true
		case strings.HasPrefix(part, "pk"):
			sku.PaintKit, _ = strconv.Atoi(part[2:])
			sku.hasPaintKit = true
		case strings.HasPrefix(part, "u"):
			sku.Effect, _ = strconv.Atoi(part[1:])
		case strings.HasPrefix(part, "w"):
			sku.Wear, _ = strconv.Atoi(part[1:])
		case strings.HasPrefix(part, "c"):
			sku.CrateSeries, _ = strconv.Atoi(part[1:])
			sku.hasCrate = true
		case strings.HasPrefix(part, "n"):
			sku.CraftNumber, _ = strconv.Atoi(part[1:])
			sku.hasCraftNum = true
		case strings.HasPrefix(part, "p"):
			sku.Paint, _ = strconv.Atoi(part[1:])
			sku.hasPaintColor = true
		default:
			return SKU{}, apperror.New(apperror.CodeInvalidSKU,
				apperror.WithContext("unknown sku attribute "+part))
		}
	}
	return sku, nil
}

// ValidSKU reports whether s parses as an item identifier.
func ValidSKU(s string) bool {
	_, err := ParseSKU(s)
	return err == nil
}
