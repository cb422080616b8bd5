package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// DATASET REVISIONS
// =============================================================================
//
// The government extract changes its column names from release to release.
// A DatasetConfig captures one release declaratively: which column holds
// which field, how auxiliary tables join to the primary table, and the
// lookup tables (registries) the converter consults.
//
// The converter itself never hard-codes a column name.
//
// =============================================================================

// DefaultRevision is used when no revision is configured.
const DefaultRevision = "2016"

// ErrUnknownRevision is returned when a revision name has no built-in definition.
var ErrUnknownRevision = errors.New("unknown dataset revision")

// DatasetConfig describes one revision of the source extract.
type DatasetConfig struct {
	// Revision is the release name, e.g. "2016".
	Revision string `yaml:"revision"`

	// IATIVersion is written to the root element's version attribute.
	IATIVersion string `yaml:"iati_version"`

	// ExtensionNamespace is the URI bound to the "usg" prefix.
	ExtensionNamespace string `yaml:"extension_namespace"`

	// Currency is the default currency of every activity and value.
	Currency string `yaml:"currency"`

	// OrgCode is the first segment of every composite key ("US-1").
	OrgCode string `yaml:"org_code"`

	ReportingOrg Org `yaml:"reporting_org"`
	FundingOrg   Org `yaml:"funding_org"`
	ExtendingOrg Org `yaml:"extending_org"`

	KeyScheme KeyScheme `yaml:"key_scheme"`

	// Languages lists narrative language tags. "en" is written without an
	// xml:lang attribute.
	Languages []string `yaml:"languages"`

	// MissingMarkers are cell texts treated as missing at ingestion.
	// "NA" is deliberately absent: it is Namibia's ISO code.
	MissingMarkers []string `yaml:"missing_markers"`

	TextNormalization TextNormalization `yaml:"text_normalization"`

	Columns    Columns    `yaml:"columns"`
	Tables     Tables     `yaml:"tables"`
	Registries Registries `yaml:"registries"`

	TransactionTypes TransactionTypes `yaml:"transaction_types"`

	// CollaborationTypes maps the collaboration label to its code.
	CollaborationTypes Registry `yaml:"collaboration_types"`
}

// Org is a fixed organisation reference.
type Org struct {
	Ref  string `yaml:"ref"`
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// KeyScheme controls how composite keys are built.
type KeyScheme struct {
	// SectorSegmented appends the two-digit sector category to the key.
	SectorSegmented bool `yaml:"sector_segmented"`

	// DefaultCategory is used when the sector code cannot be parsed.
	DefaultCategory string `yaml:"default_category"`
}

// TextNormalization is applied once to every cell at ingestion.
type TextNormalization struct {
	// Replacements maps exact cell texts to their corrected form.
	Replacements map[string]string `yaml:"replacements"`

	// RepairMojibake re-decodes text that was UTF-8 read as Windows-1252.
	RepairMojibake bool `yaml:"repair_mojibake"`
}

// Columns maps logical fields to the extract's column names.
type Columns struct {
	// Geography
	DACRegionalCode string `yaml:"dac_regional_code"`
	ISOAlphaCode    string `yaml:"iso_alpha_code"`
	DACCountryCode  string `yaml:"dac_country_code"`
	DACCountryName  string `yaml:"dac_country_name"`

	// Keys and classification
	AwardID      string `yaml:"award_id"`
	SectorCode   string `yaml:"sector_code"`
	SectorName   string `yaml:"sector_name"`
	CategoryName string `yaml:"category_name"`

	// Award narrative
	AwardTitle       string `yaml:"award_title"`
	AwardDescription string `yaml:"award_description"`
	Objectives       string `yaml:"objectives"`

	// Status and dates
	ReportingStatus string `yaml:"reporting_status"`
	StartDate       string `yaml:"start_date"`
	EndDate         string `yaml:"end_date"`
	SigningDate     string `yaml:"signing_date"`
	ActivityScope   string `yaml:"activity_scope"`

	// Organisations
	AppropriatedAgency    string `yaml:"appropriated_agency"`
	ImplementingAgent     string `yaml:"implementing_agent"`
	ImplementingAgentType string `yaml:"implementing_agent_type"`

	// Contact
	ContactOrganisation string `yaml:"contact_organisation"`
	ContactName         string `yaml:"contact_name"`
	ContactTelephone    string `yaml:"contact_telephone"`
	ContactEmail        string `yaml:"contact_email"`
	ContactAddress      string `yaml:"contact_address"`
	Website             string `yaml:"website"`

	// Default codes
	CollaborationType string `yaml:"collaboration_type"`
	FlowType          string `yaml:"flow_type"`
	FinanceType       string `yaml:"finance_type"`
	AidType           string `yaml:"aid_type"`
	TiedStatus        string `yaml:"tied_status"`

	// Budget
	BudgetStart  string `yaml:"budget_start"`
	BudgetEnd    string `yaml:"budget_end"`
	BudgetAmount string `yaml:"budget_amount"`

	// Transactions
	TransactionValue       string `yaml:"transaction_value"`
	TransactionType        string `yaml:"transaction_type"`
	TransactionDate        string `yaml:"transaction_date"`
	TransactionDescription string `yaml:"transaction_description"`
	DisbursementChannel    string `yaml:"disbursement_channel"`
	DACPurposeCode         string `yaml:"dac_purpose_code"`
	DACPurposeName         string `yaml:"dac_purpose_name"`
	HumanitarianFlag       string `yaml:"humanitarian_flag"`
	HumanitarianCluster    string `yaml:"humanitarian_cluster"`
	TreasuryRegularAccount string `yaml:"treasury_regular_account"`
	TreasuryMainAccount    string `yaml:"treasury_main_account"`
	TreasuryMainTitle      string `yaml:"treasury_main_title"`
	FundingYearBegin       string `yaml:"funding_year_begin"`
	FundingYearEnd         string `yaml:"funding_year_end"`

	// Extension fields
	ProgramArea   string `yaml:"program_area"`
	StateLocation string `yaml:"state_location"`
	DUNSNumber    string `yaml:"duns_number"`
	TEC           string `yaml:"tec"`

	// Inline numbered series on the primary table. "%d" is replaced by 1, 2, ...
	LocationSeries LocationSeries   `yaml:"location_series"`
	DocumentSeries []DocumentSeries `yaml:"document_series"`
}

// LocationSeries names the numbered location columns of the primary table.
type LocationSeries struct {
	Name        string `yaml:"name"`
	Coordinates string `yaml:"coordinates"`
}

// DocumentSeries names one numbered document column family.
// Format and Category are shared by every member of the series.
type DocumentSeries struct {
	Title    string `yaml:"title"`
	Link     string `yaml:"link"`
	Format   string `yaml:"format"`
	Category string `yaml:"category"`
	Language string `yaml:"language"`
}

// Tables describes how each auxiliary table joins to the primary table.
type Tables struct {
	Locations  LocationTable   `yaml:"locations"`
	Documents  DocumentTable   `yaml:"documents"`
	Historical HistoricalTable `yaml:"historical"`
	Results    ResultTable     `yaml:"results"`
}

// LocationTable joins by award id.
type LocationTable struct {
	JoinColumn  string `yaml:"join_column"`
	Name        string `yaml:"name"`
	Coordinates string `yaml:"coordinates"`
	Reach       string `yaml:"reach"`
	Exactness   string `yaml:"exactness"`
	Class       string `yaml:"class"`
}

// DocumentTable joins by award id.
type DocumentTable struct {
	JoinColumn string `yaml:"join_column"`
	Title      string `yaml:"title"`
	URL        string `yaml:"url"`
	Format     string `yaml:"format"`
	Category   string `yaml:"category"`
	Language   string `yaml:"language"`
}

// HistoricalTable joins by award id and reuses the primary transaction columns.
type HistoricalTable struct {
	JoinColumn string `yaml:"join_column"`
}

// ResultTable joins by the clean activity id.
type ResultTable struct {
	JoinColumn  string `yaml:"join_column"`
	Type        string `yaml:"type"`
	Title       string `yaml:"title"`
	Measure     string `yaml:"measure"`
	Indicator   string `yaml:"indicator"`
	PeriodStart string `yaml:"period_start"`
	PeriodEnd   string `yaml:"period_end"`
	Target      string `yaml:"target"`
	Actual      string `yaml:"actual"`
}

// Registries holds the caller-supplied lookup tables.
type Registries struct {
	AppropriatedAgencies Registry `yaml:"appropriated_agencies"`
	ImplementingAgents   Registry `yaml:"implementing_agents"`
	Categories           Registry `yaml:"categories"`
}

// Registry is an exact-match lookup table with a default.
type Registry struct {
	Entries map[string]string `yaml:"entries"`
	Default string            `yaml:"default"`
}

// Lookup returns the entry for key, or the registry default.
func (r Registry) Lookup(key string) string {
	if v, ok := r.Entries[key]; ok {
		return v
	}
	return r.Default
}

// TransactionTypes lists the labels of each transaction class.
type TransactionTypes struct {
	Commitment   []string `yaml:"commitment"`
	Disbursement []string `yaml:"disbursement"`
}

// =============================================================================
// BUILT-IN REVISIONS
// =============================================================================

// Revisions lists the built-in revision names in sorted order.
func Revisions() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var builtins = map[string]func() *DatasetConfig{
	"2016": revision2016,
	"2017": revision2017,
}

// Dataset returns a fresh copy of a built-in revision.
func Dataset(revision string) (*DatasetConfig, error) {
	build, ok := builtins[revision]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownRevision, revision, strings.Join(Revisions(), ", "))
	}
	return build(), nil
}

// LoadDatasetFile reads a YAML dataset definition and layers it over the
// built-in base revision. Fields absent from the file keep the base values;
// registry entries are merged.
func LoadDatasetFile(path, baseRevision string) (*DatasetConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}

	dataset, err := Dataset(baseRevision)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset file: %w", err)
	}

	if err := dataset.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}

	return dataset, nil
}

// Validate checks the fields the converter cannot work without.
func (d *DatasetConfig) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("org_code", d.OrgCode)
	check("columns.award_id", d.Columns.AwardID)
	check("columns.transaction_type", d.Columns.TransactionType)
	check("columns.transaction_value", d.Columns.TransactionValue)
	check("columns.iso_alpha_code", d.Columns.ISOAlphaCode)
	if len(d.Languages) == 0 {
		missing = append(missing, "languages")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// RequiredColumns lists the columns a table must carry for a conversion to
// be possible. A missing column is a structural failure.
func (d *DatasetConfig) RequiredColumns(table string) []string {
	c := d.Columns
	switch table {
	case "primary":
		return nonEmpty(c.AwardID, c.TransactionType, c.TransactionValue,
			c.DACRegionalCode, c.ISOAlphaCode, c.DACCountryCode)
	case "locations":
		return nonEmpty(d.Tables.Locations.JoinColumn, d.Tables.Locations.Name)
	case "documents":
		return nonEmpty(d.Tables.Documents.JoinColumn, d.Tables.Documents.Title, d.Tables.Documents.URL)
	case "historical":
		// Historical rows are matched to an award by geography as well.
		return nonEmpty(d.Tables.Historical.JoinColumn, c.TransactionType, c.TransactionValue,
			c.DACRegionalCode, c.ISOAlphaCode, c.DACCountryCode)
	case "results":
		return nonEmpty(d.Tables.Results.JoinColumn, d.Tables.Results.Indicator)
	}
	return nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// revision2016 is the November 2016 extract with sector-segmented keys.
// Unknown appropriating agencies fall back to the general government code;
// unknown implementing agents stay unmapped.
func revision2016() *DatasetConfig {
	return &DatasetConfig{
		Revision:           "2016",
		IATIVersion:        "2.01",
		ExtensionNamespace: "http://www.foreignassistance.gov/web/IATI/usg-extension",
		Currency:           "USD",
		OrgCode:            "US-1",
		ReportingOrg:       Org{Ref: "US-USAGOV", Type: "10", Name: "USA"},
		FundingOrg:         Org{Ref: "US-USAGOV", Type: "10", Name: "USA"},
		ExtendingOrg:       Org{Ref: "US-1", Type: "10", Name: "U.S. Agency for International Development"},
		KeyScheme:          KeyScheme{SectorSegmented: true, DefaultCategory: "90"},
		Languages:          []string{"en"},
		MissingMarkers:     []string{"nan", "NaN", "NULL", "null", "#N/A"},
		TextNormalization: TextNormalization{
			Replacements:   map[string]string{"CÃ´te d'Ivoire": "Côte d'Ivoire"},
			RepairMojibake: true,
		},
		Columns: Columns{
			DACRegionalCode:        "DAC Regional Code",
			ISOAlphaCode:           "ISO Alpha Code",
			DACCountryCode:         "DAC Country Code",
			DACCountryName:         "DAC Country Name",
			AwardID:                "Implementing Mechanism ID",
			SectorCode:             "U.S. Government Sector Code",
			SectorName:             "U.S. Government Sector Name",
			CategoryName:           "U.S. Government Category Name",
			AwardTitle:             "Implementing Mechanism Title",
			AwardDescription:       "Award Transaction - Description",
			Objectives:             "Implementing Mechanism Purpose Statement",
			ReportingStatus:        "Reporting Status",
			StartDate:              "Start Date",
			EndDate:                "End Date",
			SigningDate:            "Implementing Mechanism Signing Date",
			ActivityScope:          "Activity Scope",
			AppropriatedAgency:     "Appropriated Agency",
			ImplementingAgent:      "Implementing Agent",
			ImplementingAgentType:  "Implementing Agent Type",
			ContactOrganisation:    "",
			ContactName:            "USAID contact name",
			ContactTelephone:       "USAID contact telephone",
			ContactEmail:           "USAID contact email",
			ContactAddress:         "USAID contact address",
			Website:                "Activity Website",
			CollaborationType:      "Collaboration Type",
			FlowType:               "Flow Type",
			FinanceType:            "Finance Type",
			AidType:                "Aid Type Code",
			TiedStatus:             "Tying Status of Award",
			BudgetStart:            "Budget Start Date",
			BudgetEnd:              "Budget End Date",
			BudgetAmount:           "Total allocations",
			TransactionValue:       "Award Transaction Value",
			TransactionType:        "Award Transaction Type",
			TransactionDate:        "Award Transaction Date",
			TransactionDescription: "Award Transaction - Description",
			DisbursementChannel:    "Disbursement Channel",
			DACPurposeCode:         "DAC Purpose Code",
			DACPurposeName:         "DAC Purpose Name",
			HumanitarianFlag:       "Humanitarian Flag",
			HumanitarianCluster:    "Humanitarian Cluster Code",
			TreasuryRegularAccount: "Treasury Regular Account Code",
			TreasuryMainAccount:    "Treasury Main Account Code",
			TreasuryMainTitle:      "Treasury Main Account Title",
			FundingYearBegin:       "Beginning Fiscal Funding Year",
			FundingYearEnd:         "Ending Fiscal Funding Year",
			ProgramArea:            "Program Area Name",
			StateLocation:          "State Location",
			DUNSNumber:             "Implementing Agent's DUNS Number",
			TEC:                    "TEC1",
			LocationSeries: LocationSeries{
				Name:        "Subnational Location Name %d",
				Coordinates: "Subnational Location Coordinates %d",
			},
			DocumentSeries: []DocumentSeries{
				{
					Title:    "Evaluation Title %d",
					Link:     "Evaluation Link %d",
					Format:   "Evaluation File Format",
					Category: "Evaluation Document Category",
					Language: "Evaluation Language %d",
				},
				{
					Title:    "Impact Appraisal Title %d",
					Link:     "Impact Appraisal Link %d",
					Format:   "Impact Appraisal File Format",
					Category: "Impact Appraisal Document Category",
					Language: "Impact Appraisal Language %d",
				},
			},
		},
		Tables: Tables{
			Locations: LocationTable{
				JoinColumn:  "Implementing Mechanism ID",
				Name:        "Location Name",
				Coordinates: "Location Coordinates",
				Reach:       "Location Reach",
				Exactness:   "Location Exactness",
				Class:       "Location Class",
			},
			Documents: DocumentTable{
				JoinColumn: "Implementing Mechanism ID",
				Title:      "Document Title",
				URL:        "Document Link",
				Format:     "Document Format",
				Category:   "Document Category",
				Language:   "Document Language",
			},
			Historical: HistoricalTable{JoinColumn: "Implementing Mechanism ID"},
			Results: ResultTable{
				JoinColumn:  "activity_id",
				Type:        "type_code",
				Title:       "program_element_name",
				Measure:     "indicator_measure_code",
				Indicator:   "indicator_name",
				PeriodStart: "result_period_start",
				PeriodEnd:   "result_period_end",
				Target:      "target_result",
				Actual:      "actual_result",
			},
		},
		Registries: Registries{
			AppropriatedAgencies: Registry{
				Entries: map[string]string{
					"Dept of State":       "US-11",
					"Dept of Agriculture": "US-2",
					"MCC":                 "US-18",
					"USAID":               "US-1",
				},
				Default: "US-USAGOV",
			},
			ImplementingAgents: Registry{
				Entries: map[string]string{
					"US Department of State":       "US-11",
					"US Department of Treasury":    "US-6",
					"US Department of Agriculture": "US-2",
					"USAID Mission":                "US-1",
					"USAID/Washington":             "US-1",
				},
				Default: "",
			},
			Categories: Registry{
				Entries: defaultCategoryDescriptions(),
				Default: "Unspecified is used only when the category and sector are unknown or cannot be specified.",
			},
		},
		TransactionTypes: TransactionTypes{
			Commitment:   []string{"Commitment", "Obligation"},
			Disbursement: []string{"Disbursement"},
		},
		CollaborationTypes: Registry{
			Entries: map[string]string{"Bilateral": "1", "Multilateral": "2"},
			Default: "2",
		},
	}
}

// revision2017 renames the award and transaction columns and drops the
// sector segment from keys.
func revision2017() *DatasetConfig {
	d := revision2016()
	d.Revision = "2017"
	d.KeyScheme.SectorSegmented = false
	d.Columns.AwardID = "Award Number"
	d.Columns.TransactionValue = "Transaction Value"
	d.Columns.TransactionType = "Transaction Type"
	d.Columns.TransactionDate = "Transaction Date"
	d.Columns.TransactionDescription = "Transaction Description"
	d.Tables.Locations.JoinColumn = "Award Number"
	d.Tables.Documents.JoinColumn = "Award Number"
	d.Tables.Historical.JoinColumn = "Award Number"
	return d
}

func defaultCategoryDescriptions() map[string]string {
	return map[string]string{
		"10": "To help nations effectively establish the conditions and capacity for achieving peace, " +
			"security, and stability; and for responding effectively against arising threats to national " +
			"or international security and stability.",
		"20": "To promote and strengthen effective democracies in recipient states and move them along a " +
			"continuum toward democratic consolidation.",
		"30": "To contribute to improvements in the health of people, especially women, children, and " +
			"other vulnerable populations in countries of the developing world, through expansion of " +
			"basic health services, including family planning; strengthening national health systems, " +
			"and addressing global issues and special concerns such as HIV/AIDS and other infectious diseases.",
		"40": "Promote equitable, effective, accountable, and sustainable formal and non-formal education " +
			"systems and address factors that place individuals at risk for poverty, exclusion, neglect, " +
			"or victimization. Help populations manage their risks and gain access to opportunities that " +
			"support their full and productive participation in society. Help populations rebound from " +
			"temporary adversity, cope with chronic poverty, reduce vulnerability, and increase self-reliance.",
		"50": "Generate rapid, sustained, and broad-based economic growth.",
		"60": "Activities that support the sustainability of a productive and clean environment by: " +
			"ensuring that the environment and the natural resources upon which human lives and " +
			"livelihoods depend are managed in ways that sustain productivity growth, a healthy " +
			"population, as well as the intrinsic spiritual and cultural value of the environment, " +
			"and conserving biodiversity and managing natural resources in ways that maintain their " +
			"long-term viability and preserve their potential to meet the needs of present and " +
			"future generations.",
		"70": "To save lives, alleviate suffering, and minimize the economic costs of conflict, " +
			"disasters and displacement. Humanitarian assistance is provided on the basis of need " +
			"according to principles of universality, impartiality and human dignity. It is often " +
			"organized by sectors, but requires an integrated, coordinated and/or multi-sectoral " +
			"approach to be most effective. Emergency operations will foster the transition from " +
			"relief, through recovery, to development, but they cannot and will not replace the " +
			"development investments necessary to reduce chronic poverty or establish just social services.",
		"80": "To provide the general management support required to ensure completion of U.S. foreign " +
			"assistance objectives by facilitating program management, monitoring and evaluation, " +
			"and accounting and tracking for costs.",
	}
}
