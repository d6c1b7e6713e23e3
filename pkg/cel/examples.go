package cel

// ConditionExpressionExamples lists expressions accepted by the "expr" condition operator.
var ConditionExpressionExamples = map[string]string{
	"simple_equals":       `record.status == "active"`,
	"numeric_range":       `record.amount >= 10.0 && record.amount <= 10000.0`,
	"string_contains":     `record.email.contains("@example.com")`,
	"in_list":             `record.stage in ["lead", "qualified"]`,
	"nested_field":        `record.account.tier == "premium"`,
	"has_field":           `has(record.email) && record.email != ""`,
	"event_metadata":      `event.module == "crm" && record.owner != ""`,
	"list_size":           `size(record.tags) > 2`,
	"complex_logic":       `(record.status == "active" || record.status == "trial") && record.seats > 50.0`,
	"string_manipulation": `record.country.upperAscii() == "US"`,
}
