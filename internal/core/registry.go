package core

import "fmt"

// Renderer names how a table column formats its cell.
type Renderer string

const (
	RenderText        Renderer = "text"
	RenderCurrency    Renderer = "currency"
	RenderNumber      Renderer = "number"
	RenderLink        Renderer = "link"
	RenderDescription Renderer = "description"
)

type (
	// Column describes one table column of a dataset section.
	Column struct {
		Field  string   `yaml:"field" json:"field"`
		Title  string   `yaml:"title" json:"title"`
		Render Renderer `yaml:"render" json:"render"`
	}

	// ChartSpec describes one top-N bar chart: records grouped by GroupField,
	// summed over ValueField.
	ChartSpec struct {
		ID         string   `yaml:"id" json:"id"`
		Label      string   `yaml:"label" json:"label"`
		GroupField string   `yaml:"group_field" json:"group_field"`
		ValueField string   `yaml:"value_field" json:"value_field"`
		Format     Renderer `yaml:"format" json:"format"`
		Color      string   `yaml:"color" json:"color"`
	}

	// StatSpec is an additional per-dataset total (e.g. square footage).
	StatSpec struct {
		Field  string   `yaml:"field" json:"field"`
		Label  string   `yaml:"label" json:"label"`
		Format Renderer `yaml:"format" json:"format"`
	}

	// KindConfig drives the whole load/aggregate/render pipeline for a kind.
	KindConfig struct {
		Kind         Kind        `yaml:"-" json:"-"`
		Name         string      `yaml:"name" json:"name"`
		Path         string      `yaml:"path" json:"path"`
		APIEndpoint  string      `yaml:"api_endpoint" json:"api_endpoint"`
		AgencyField  string      `yaml:"agency_field" json:"agency_field"`
		ValueField   string      `yaml:"value_field" json:"value_field"`
		SavingsField string      `yaml:"savings_field" json:"savings_field"`
		Stats        []StatSpec  `yaml:"stats" json:"stats"`
		Charts       []ChartSpec `yaml:"charts" json:"charts"`
		Columns      []Column    `yaml:"columns" json:"columns"`
		SortField    string      `yaml:"sort_field" json:"sort_field"`
		SearchLabel  string      `yaml:"search_label" json:"search_label"`
	}

	// Registry holds the configuration of every kind, indexed by Kind.
	Registry [NumKinds]KindConfig
)

// Config returns the configuration for k.
func (r *Registry) Config(k Kind) (KindConfig, error) {
	if !k.Valid() {
		return KindConfig{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return r[k], nil
}

// Column looks up a column definition by field name.
func (c KindConfig) Column(field string) (Column, bool) {
	for _, col := range c.Columns {
		if col.Field == field {
			return col, true
		}
	}
	return Column{}, false
}

// HasSavings reports whether the kind carries a savings field.
func (c KindConfig) HasSavings() bool {
	return c.SavingsField != ""
}

const (
	colorGrants    = "rgba(13, 110, 253, 0.7)"
	colorContracts = "rgba(25, 135, 84, 0.7)"
	colorLeases    = "rgba(13, 202, 240, 0.7)"
	colorPayments  = "rgba(255, 193, 7, 0.7)"
)

// DefaultRegistry returns the built-in dataset configuration.
func DefaultRegistry() *Registry {
	return &Registry{
		Grants: {
			Kind:         Grants,
			Name:         "Grants",
			Path:         "data/doge_grants_data.json",
			APIEndpoint:  "/savings/grants",
			AgencyField:  "agency",
			ValueField:   "value",
			SavingsField: "savings",
			Charts: []ChartSpec{
				{ID: "recipients", Label: "Value by Recipient", GroupField: "recipient", ValueField: "value", Format: RenderCurrency, Color: colorGrants},
				{ID: "agencies", Label: "Value by Agency", GroupField: "agency", ValueField: "value", Format: RenderCurrency, Color: colorGrants},
			},
			Columns: []Column{
				{Field: "date", Title: "Date", Render: RenderText},
				{Field: "agency", Title: "Agency", Render: RenderText},
				{Field: "recipient", Title: "Recipient", Render: RenderText},
				{Field: "value", Title: "Value", Render: RenderCurrency},
				{Field: "savings", Title: "Savings", Render: RenderCurrency},
				{Field: "link", Title: "Link", Render: RenderLink},
				{Field: "description", Title: "Description", Render: RenderDescription},
			},
			SortField:   "value",
			SearchLabel: "Search grants:",
		},
		Contracts: {
			Kind:         Contracts,
			Name:         "Contracts",
			Path:         "data/doge_contracts_data.json",
			APIEndpoint:  "/savings/contracts",
			AgencyField:  "agency",
			ValueField:   "value",
			SavingsField: "savings",
			Charts: []ChartSpec{
				{ID: "vendors", Label: "Value by Vendor", GroupField: "vendor", ValueField: "value", Format: RenderCurrency, Color: colorContracts},
				{ID: "agencies", Label: "Value by Agency", GroupField: "agency", ValueField: "value", Format: RenderCurrency, Color: colorContracts},
			},
			Columns: []Column{
				{Field: "piid", Title: "PIID", Render: RenderText},
				{Field: "agency", Title: "Agency", Render: RenderText},
				{Field: "vendor", Title: "Vendor", Render: RenderText},
				{Field: "value", Title: "Value", Render: RenderCurrency},
				{Field: "savings", Title: "Savings", Render: RenderCurrency},
				{Field: "deleted_date", Title: "Deleted", Render: RenderText},
				{Field: "description", Title: "Description", Render: RenderDescription},
				{Field: "fpds_status", Title: "FPDS Status", Render: RenderText},
				{Field: "fpds_link", Title: "FPDS", Render: RenderLink},
			},
			SortField:   "value",
			SearchLabel: "Search contracts:",
		},
		Leases: {
			Kind:         Leases,
			Name:         "Leases",
			Path:         "data/doge_leases_data.json",
			APIEndpoint:  "/savings/leases",
			AgencyField:  "agency",
			ValueField:   "value",
			SavingsField: "savings",
			Stats: []StatSpec{
				{Field: "sq_ft", Label: "Total Sq Ft", Format: RenderNumber},
			},
			Charts: []ChartSpec{
				{ID: "locations", Label: "Square Feet by Location", GroupField: "location", ValueField: "sq_ft", Format: RenderNumber, Color: colorLeases},
				{ID: "agencies", Label: "Value by Agency", GroupField: "agency", ValueField: "value", Format: RenderCurrency, Color: colorLeases},
			},
			Columns: []Column{
				{Field: "date", Title: "Date", Render: RenderText},
				{Field: "agency", Title: "Agency", Render: RenderText},
				{Field: "location", Title: "Location", Render: RenderText},
				{Field: "sq_ft", Title: "Sq Ft", Render: RenderNumber},
				{Field: "value", Title: "Value", Render: RenderCurrency},
				{Field: "savings", Title: "Savings", Render: RenderCurrency},
				{Field: "description", Title: "Description", Render: RenderDescription},
			},
			SortField:   "sq_ft",
			SearchLabel: "Search leases:",
		},
		Payments: {
			Kind:        Payments,
			Name:        "Payments",
			Path:        "data/doge_payments_data.json",
			APIEndpoint: "/payments",
			AgencyField: "agency_name",
			ValueField:  "payment_amt",
			Charts: []ChartSpec{
				{ID: "organizations", Label: "Value by Organization", GroupField: "org_name", ValueField: "payment_amt", Format: RenderCurrency, Color: colorPayments},
				{ID: "agencies", Label: "Value by Agency", GroupField: "agency_name", ValueField: "payment_amt", Format: RenderCurrency, Color: colorPayments},
			},
			Columns: []Column{
				{Field: "payment_date", Title: "Date", Render: RenderText},
				{Field: "agency_name", Title: "Agency", Render: RenderText},
				{Field: "org_name", Title: "Organization", Render: RenderText},
				{Field: "payment_amt", Title: "Amount", Render: RenderCurrency},
				{Field: "award_description", Title: "Description", Render: RenderDescription},
			},
			SortField:   "payment_amt",
			SearchLabel: "Search payments:",
		},
	}
}
