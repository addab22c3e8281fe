// Package items holds the built-in currency catalogue used to seed the tracked list.
package items

import "strings"

// PinnedBase is the currency every rate is published against. It is never fetched
// and is always tracked.
const PinnedBase = "USD"

// DefaultCodes is the ISO 4217 list queried against USD on the first run, before any
// tracked code file exists. Codes that never resolve are pruned after each run.
var DefaultCodes = []string{
	"AFN", "EUR", "ALL", "DZD", "USD", "AOA", "XCD", "AWG", "AUD", "AZN", "BSD", "BHD",
	"BDT", "BBD", "BYN", "XOF", "BMD", "BTN", "INR", "BOB", "BOV", "BAM", "BWP", "NOK",
	"BRL", "BND", "BGN", "BIF", "CVE", "KHR", "XAF", "CAD", "KYD", "CLF", "CLP", "CNY",
	"COP", "COU", "KMF", "CDF", "NZD", "CRC", "HRK", "CUC", "CUP", "ANG", "CZK", "DKK",
	"DJF", "DOP", "EGP", "SVC", "ERN", "ETB", "FKP", "FJD", "GBP", "GEL", "GHS", "GIP",
	"GMD", "GNF", "GTQ", "GYD", "HTG", "HUF", "IDR", "ILS", "IRR", "ISK", "JMD", "JOD",
	"JPY", "KES", "KGS", "KPW", "KRW", "KWD", "KZT", "LAK", "LBP", "LKR", "LRD", "LSL",
	"LYD", "MAD", "MDL", "MGA", "MKD", "MMK", "MNT", "MOP", "MRU", "MUR", "MVR", "MWK",
	"MXN", "MXV", "MYR", "MZN", "NAD", "NGN", "NIO", "NPR", "OMR", "PAB", "PEN", "PGK",
	"PHP", "PKR", "PLN", "PYG", "QAR", "RON", "RSD", "RUB", "RWF", "SHP", "SAR", "SGD",
	"SCR", "SLL", "SOS", "SDG", "SEK", "SRD", "SZL", "CHF", "XPF", "TWD", "TZS", "THB",
	"TJS", "TND", "TRY", "TMT", "UGX", "UAH", "UYU", "UYW", "UZS", "VES", "VND", "VUV",
	"WST", "CNH", "ZWL",
}

// Names maps the most traded codes to a display name for reports.
var Names = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "Pound Sterling",
	"CHF": "Swiss Franc",
	"CAD": "Canadian Dollar",
	"AUD": "Australian Dollar",
	"JPY": "Yen",
	"CNY": "Yuan Renminbi",
	"INR": "Indian Rupee",
	"MXN": "Mexican Peso",
	"BRL": "Brazilian Real",
	"CLP": "Chilean Peso",
	"TRY": "Turkish Lira",
	"AED": "UAE Dirham",
	"IRR": "Iranian Rial",
}

// Name returns the display name for code, or the code itself.
func Name(code string) string {
	code = strings.ToUpper(code)
	if n, ok := Names[code]; ok {
		return n
	}
	return code
}
