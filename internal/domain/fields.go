package domain

import (
	"regexp"
	"strings"
)

// fieldAliases folds the labels extraction backends use onto canonical keys.
var fieldAliases = map[string]string{
	"invoice_number": "invoice_no",
	"invoice_id":     "invoice_no",
	"bill_no":        "invoice_no",

	"invoice_value":   FieldInvoiceAmount,
	"total_amount":    FieldInvoiceAmount,
	"grand_total":     FieldInvoiceAmount,
	"net_payable":     FieldInvoiceAmount,
	"amount":          FieldInvoiceAmount,
	"total":           FieldInvoiceAmount,
	"bill_amount":     FieldInvoiceAmount,
	"amount_payable":  FieldInvoiceAmount,
	"total_value":     FieldInvoiceAmount,
	"invoice_total":   FieldInvoiceAmount,
	"total_invoice":   FieldInvoiceAmount,
	"net_amount":      FieldInvoiceAmount,
	"payable_amount":  FieldInvoiceAmount,
	"gross_amount":    FieldInvoiceAmount,
	"taxable_value":   FieldInvoiceAmount,
	"invoice_amt":     FieldInvoiceAmount,
	"total_amount_rs": FieldInvoiceAmount,

	"order_date": FieldInvoiceDate,
	"ack_date":   FieldInvoiceDate,
	"date":       FieldInvoiceDate,
	"bill_date":  FieldInvoiceDate,

	"buyer":         FieldBuyerName,
	"bill_to":       FieldBuyerName,
	"customer_name": FieldBuyerName,
	"receiver_name": FieldBuyerName,

	"ship_to":     "ship_to_party",
	"consignee":   "ship_to_party",
	"delivery_to": "ship_to_party",

	"vehicle_number": "vehicle_no",
	"truck_no":       "vehicle_no",
	"truck_number":   "vehicle_no",
	"lorry_no":       "vehicle_no",

	"lr_number":       "lr_no",
	"lorry_receipt":   "lr_no",
	"consignment_no":  "lr_no",
	"lr_receipt_date": FieldLRDate,

	"from":        "origin",
	"source":      "origin",
	"to":          "destination",
	"delivery_at": "destination",

	"eway_bill_no":     "e_way_bill_no",
	"ewaybill_no":      "e_way_bill_no",
	"e_way_bill":       "e_way_bill_no",
	"eway_bill_number": "e_way_bill_no",
	"e_waybill_no":     "e_way_bill_no",

	"order_number":  "order_no",
	"po_no":         "order_no",
	"dispatch_type": "order_type",

	"seller":        "principal_company",
	"consignor":     "principal_company",
	"supplier":      "principal_company",
	"supplier_name": "principal_company",

	"ack_status": "acknowledged",
	"signed":     "acknowledged",

	"lr_weight_mt":    FieldLRWeight,
	"loaded_weight":   FieldLRWeight,
	"site_weight_mt":  FieldSiteWeight,
	"received_weight": FieldSiteWeight,
	"unloaded_weight": FieldSiteWeight,
}

// NormalizeFieldKey lowercases key, turns dots, dashes and spaces into
// underscores and resolves known aliases.
func NormalizeFieldKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.NewReplacer(".", "_", " ", "_", "-", "_", "/", "_").Replace(k)
	for strings.Contains(k, "__") {
		k = strings.ReplaceAll(k, "__", "_")
	}
	k = strings.Trim(k, "_")
	if canonical, ok := fieldAliases[k]; ok {
		return canonical
	}
	return k
}

// MergeFields copies extracted values into dst for keys dst has no value for.
// It returns the keys that were filled.
func MergeFields(dst, extracted map[string]string) []string {
	var filled []string
	for k, v := range extracted {
		v = strings.TrimSpace(v)
		if v == "" || IsDerivedField(k) {
			continue
		}
		if strings.TrimSpace(dst[k]) != "" {
			continue
		}
		dst[k] = v
		filled = append(filled, k)
	}
	return filled
}

var fieldRules = map[string]*regexp.Regexp{
	"invoice_no":    regexp.MustCompile(`^[A-Z0-9/\-]{6,}`),
	"e_way_bill_no": regexp.MustCompile(`^\d{10,15}`),
	"vehicle_no":    regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z]{2}\d{4}`),
	"lr_no":         regexp.MustCompile(`^\d+`),
}

// ScoreField is the fallback confidence for an extracted value when the
// extraction backend reports none.
func ScoreField(key, value string) float32 {
	if strings.TrimSpace(value) == "" {
		return 0
	}
	if key == FieldInvoiceDate || key == FieldLRDate {
		if _, ok := ParseDate(value); ok {
			return 0.95
		}
		return 0.5
	}
	rule, ok := fieldRules[key]
	if !ok {
		return 0.8
	}
	if rule.MatchString(value) {
		return 0.95
	}
	return 0.5
}
