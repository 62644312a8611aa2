package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var pureNumeral = regexp.MustCompile(`^\d+([.,]\d+)?$`)

// FormatQuantity normalizes a shopping quantity: a bare numeral becomes
// "{n}x", empty becomes "1x" and anything else is kept as typed.
func FormatQuantity(q string) string {
	q = strings.TrimSpace(q)
	switch {
	case q == "":
		return "1x"
	case pureNumeral.MatchString(q):
		return q + "x"
	default:
		return q
	}
}

var unicodeFractions = map[string]string{
	"½": "1/2",
	"⅓": "1/3",
	"⅔": "2/3",
	"¼": "1/4",
	"¾": "3/4",
}

// amount: mixed number, fraction, decimal or integer, at the start of a line.
var leadingAmount = regexp.MustCompile(`^(\d+\s+\d+/\d+|\d+/\d+|\d+(?:[.,]\d+)?)`)

var unitPattern = regexp.MustCompile(`(?i)^(x[ií]caras?|colher(?:es)?(?: de (?:sopa|ch[aá]))?|unidades?|un|gramas?|kg|g|ml|litros?|l|dentes?|latas?|pitadas?|fatias?|ma[cç]os?|pacotes?|copos?|x)(?:[\s.,;]|$)`)

// ParseIngredientLine splits a recipe ingredient such as "2 xícaras de
// farinha" into name ("farinha") and quantity ("2 xícaras"). Lines without a
// leading amount return an empty quantity.
func ParseIngredientLine(line string) (name, quantity string) {
	s := line
	for u, ascii := range unicodeFractions {
		s = strings.ReplaceAll(s, u, " "+ascii)
	}
	s = strings.TrimSpace(strings.TrimLeft(s, "-•*· \t"))

	amount := leadingAmount.FindString(s)
	if amount == "" {
		return strings.TrimSpace(s), ""
	}
	rest := strings.TrimSpace(s[len(amount):])

	quantity = amount
	// Units end at whitespace or punctuation, not \b, so "chá" stays whole.
	if m := unitPattern.FindStringSubmatch(rest); m != nil {
		unit := m[1]
		if strings.EqualFold(unit, "x") {
			quantity += "x"
		} else {
			quantity += " " + unit
		}
		rest = strings.TrimSpace(rest[len(m[0]):])
	}
	rest = strings.TrimPrefix(rest, "de ")
	rest = strings.TrimPrefix(rest, "do ")
	rest = strings.TrimPrefix(rest, "da ")
	return strings.TrimSpace(rest), quantity
}

// ScaleIngredient rescales the leading amount of an ingredient line from one
// serving count to another. Lines without an amount are returned unchanged.
func ScaleIngredient(text string, from, to int) string {
	if from <= 0 || to <= 0 || from == to {
		return text
	}
	trimmed := strings.TrimLeft(text, " \t")
	indent := text[:len(text)-len(trimmed)]
	for u, ascii := range unicodeFractions {
		if strings.HasPrefix(trimmed, u) {
			trimmed = ascii + trimmed[len(u):]
			break
		}
	}

	amount := leadingAmount.FindString(trimmed)
	if amount == "" {
		return text
	}
	value, ok := parseAmount(amount)
	if !ok {
		return text
	}
	scaled := value * float64(to) / float64(from)
	return indent + formatAmount(scaled, strings.Contains(amount, ",")) + trimmed[len(amount):]
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if whole, frac, found := strings.Cut(s, " "); found {
		w, ok1 := parseAmount(whole)
		f, ok2 := parseAmount(strings.TrimSpace(frac))
		return w + f, ok1 && ok2
	}
	if num, den, found := strings.Cut(s, "/"); found {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return v, err == nil
}

var commonFractions = []struct {
	value float64
	text  string
}{
	{0.25, "1/4"},
	{1.0 / 3, "1/3"},
	{0.5, "1/2"},
	{2.0 / 3, "2/3"},
	{0.75, "3/4"},
}

func formatAmount(v float64, comma bool) string {
	whole := math.Floor(v)
	frac := v - whole
	if frac < 0.01 {
		return strconv.FormatFloat(whole, 'f', -1, 64)
	}
	for _, f := range commonFractions {
		if math.Abs(frac-f.value) < 0.01 {
			if whole == 0 {
				return f.text
			}
			return fmt.Sprintf("%.0f %s", whole, f.text)
		}
	}
	out := strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	if comma {
		out = strings.ReplaceAll(out, ".", ",")
	}
	return out
}
