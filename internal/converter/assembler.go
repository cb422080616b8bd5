package converter

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/iati-activity-converter/internal/config"
	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// =============================================================================
// TREE ASSEMBLY
// =============================================================================
//
// The assembler turns one Group into an iati-activities tree. Child order
// follows the IATI activity schema and must not be rearranged: downstream
// validators are order-sensitive.
//
// =============================================================================

const (
	hierarchyActivity = "1"
	hierarchyAward    = "3"

	srsEPSG4326 = "http://www.opengis.net/def/crs/EPSG/0/4326"

	// Location defaults: intended beneficiaries, approximate, admin region.
	defaultLocationReach     = "2"
	defaultLocationExactness = "2"
	defaultLocationClass     = "1"

	missingOrgName = "--"
)

// AssemblyStats counts what one document contains.
type AssemblyStats struct {
	Activities      int
	Awards          int
	Transactions    int
	SuppressedZeros int
	SkippedOther    int
}

func (s *AssemblyStats) add(o AssemblyStats) {
	s.Activities += o.Activities
	s.Awards += o.Awards
	s.Transactions += o.Transactions
	s.SuppressedZeros += o.SuppressedZeros
	s.SkippedOther += o.SkippedOther
}

// Assembler builds output trees.
type Assembler struct {
	ds            *config.DatasetConfig
	mapper        *FieldMapper
	normalizer    *TransactionNormalizer
	locationIndex *JoinIndex
	documentIndex *JoinIndex
	resultIndex   *JoinIndex
	generated     string
	nestAwards    bool
}

// Document builds the root node for one group.
func (a *Assembler) Document(g *Group) (*types.Node, AssemblyStats) {
	var stats AssemblyStats

	root := types.NewNode("iati-activities",
		"version", a.ds.IATIVersion,
		"generated-datetime", a.generated,
		"xmlns:usg", a.ds.ExtensionNamespace,
	)

	for _, act := range g.Activities {
		activity := a.activity(act)
		root.Append(activity)
		stats.Activities++

		for _, aw := range act.Awards {
			award, ts := a.award(aw, act)
			stats.Awards++
			stats.add(AssemblyStats{
				Transactions:    len(ts.Entries),
				SuppressedZeros: ts.SuppressedZeros,
				SkippedOther:    ts.SkippedOther,
			})
			if a.nestAwards {
				activity.Append(award)
			} else {
				root.Append(award)
			}
		}
	}

	return root, stats
}

// =============================================================================
// HIERARCHY 1
// =============================================================================

func (a *Assembler) activity(act *ActivityPlan) *types.Node {
	m := a.mapper
	c := a.ds.Columns
	row := act.Row

	n := a.activityElement(hierarchyActivity)
	n.AddText("iati-identifier", act.Keys.Composite)
	a.reportingOrg(n)

	narratives(n.Add("title"), m.FixedNarratives(a.activityTitle(row)))
	narratives(n.Add("description"), m.FixedNarratives(m.CategoryDescription(act.Keys.Category)))

	a.participatingOrg(n, "1", a.ds.FundingOrg.Ref, a.ds.FundingOrg.Type, a.ds.FundingOrg.Name)
	a.participatingOrg(n, "2", a.ds.ExtendingOrg.Ref, a.ds.ExtendingOrg.Type, a.ds.ExtendingOrg.Name)

	n.Add("activity-status", "code", a.status(row))
	a.activityDate(n, "2", m.Date(row.Get(c.TransactionDate), StartLike))

	if scope := m.NumericCode(row.Get(c.ActivityScope)); scope != "0" {
		n.Add("activity-scope", "code", scope)
	}

	for _, aw := range act.Awards {
		n.Add("related-activity", "ref", aw.Keys.Award, "type", "2")
	}
	return n
}

// activityTitle is "US-<country>-<agency>-<category>".
func (a *Assembler) activityTitle(row types.Row) string {
	m := a.mapper
	country, ok := m.Text(row.Get(a.ds.Columns.DACCountryName))
	if !ok {
		country = "Worldwide"
	}
	category, ok := m.Text(row.Get(a.ds.Columns.CategoryName))
	if !ok {
		category = "None Found"
	}
	return strings.Join([]string{"US", country, a.ds.ExtendingOrg.Name, category}, "-")
}

// =============================================================================
// HIERARCHY 3
// =============================================================================

func (a *Assembler) award(aw *AwardPlan, parent *ActivityPlan) (*types.Node, TransactionSet) {
	m := a.mapper
	c := a.ds.Columns
	row := aw.Row

	n := a.activityElement(hierarchyAward)
	n.AddText("iati-identifier", aw.Keys.Award)
	a.reportingOrg(n)

	narratives(n.Add("title"), m.Narratives(row, c.AwardTitle))
	narratives(n.Add("description", "type", "1"), m.Narratives(row, c.AwardDescription))
	if c.Objectives != "" && row.Has(c.Objectives) {
		narratives(n.Add("description", "type", "2"), m.Narratives(row, c.Objectives))
	}

	a.participatingOrgs(n, row)
	n.Add("activity-status", "code", a.status(row))
	a.awardDates(n, row)
	a.contactInfo(n, row)

	if scope := m.NumericCode(row.Get(c.ActivityScope)); scope != "0" {
		n.Add("activity-scope", "code", scope)
	}

	geo := aw.Keys.Geo
	if geo.IsCountry() {
		n.Add("recipient-country", "code", geo.Code, "percentage", "100")
	} else {
		n.Add("recipient-region", "code", geo.Code, "percentage", "100")
	}

	a.locations(n, aw)
	a.defaultCodes(n, row)
	a.budget(n, row)

	ts := a.normalizer.Collect(aw.Keys)
	for _, e := range ts.Entries {
		n.Append(a.transaction(e))
	}

	a.documentLinks(n, aw)
	a.resultNodes(n, aw)

	n.Add("related-activity", "ref", parent.Keys.Composite, "type", "1")
	n.Add("conditions", "attached", "0")
	n.Add("usg:mechanism-signing-date", "iso-date", m.Date(row.Get(c.SigningDate), StartLike).ISO)

	a.extensions(n, row)
	return n, ts
}

func (a *Assembler) participatingOrgs(n *types.Node, row types.Row) {
	m := a.mapper
	c := a.ds.Columns

	a.participatingOrg(n, "1", a.ds.FundingOrg.Ref, a.ds.FundingOrg.Type, a.ds.FundingOrg.Name)
	a.participatingOrg(n, "2", a.ds.ExtendingOrg.Ref, a.ds.ExtendingOrg.Type, a.ds.ExtendingOrg.Name)

	agency, ok := m.Text(row.Get(c.AppropriatedAgency))
	ref := m.AppropriatedAgency(agency)
	if !ok {
		agency = missingOrgName
	}
	a.participatingOrg(n, "3", ref, "10", agency)

	agent, ok := m.Text(row.Get(c.ImplementingAgent))
	ref = m.ImplementingAgent(agent)
	if !ok {
		agent = missingOrgName
	}
	agentType := m.NumericCode(row.Get(c.ImplementingAgentType))
	if agentType == "0" {
		agentType = ""
	}
	a.participatingOrg(n, "4", ref, agentType, agent)
}

// awardDates writes planned and actual start/end dates. Actual dates that
// lie after the run time are left out.
func (a *Assembler) awardDates(n *types.Node, row types.Row) {
	m := a.mapper
	start := m.Date(row.Get(a.ds.Columns.StartDate), StartLike)
	end := m.Date(row.Get(a.ds.Columns.EndDate), EndLike)

	a.activityDate(n, "1", start)
	if m.HasHappened(start.ISO) {
		a.activityDate(n, "2", start)
	}
	a.activityDate(n, "3", end)
	if m.HasHappened(end.ISO) {
		a.activityDate(n, "4", end)
	}
}

func (a *Assembler) contactInfo(n *types.Node, row types.Row) {
	m := a.mapper
	c := a.ds.Columns

	ci := n.Add("contact-info", "type", "1")

	org := a.ds.ExtendingOrg.Name
	if s, ok := m.Text(row.Get(c.ContactOrganisation)); ok {
		org = s
	}
	ci.Add("organisation").AddText("narrative", org)

	if s, ok := m.Text(row.Get(c.ContactName)); ok {
		ci.Add("person-name").AddText("narrative", s)
	}
	if s, ok := m.Text(row.Get(c.ContactTelephone)); ok {
		ci.AddText("telephone", s)
	}
	if s, ok := m.Text(row.Get(c.ContactEmail)); ok {
		ci.AddText("email", s)
	}
	if s, ok := m.Text(row.Get(c.Website)); ok {
		ci.AddText("website", s)
	}
	if s, ok := m.Text(row.Get(c.ContactAddress)); ok {
		ci.Add("mailing-address").AddText("narrative", s)
	}
}

// locations writes inline numbered locations, then locations-table rows.
func (a *Assembler) locations(n *types.Node, aw *AwardPlan) {
	m := a.mapper
	series := a.ds.Columns.LocationSeries

	if series.Name != "" {
		for i := 1; ; i++ {
			name, ok := m.Text(aw.Row.Get(fmt.Sprintf(series.Name, i)))
			if !ok {
				break
			}
			coords, _ := m.Text(aw.Row.Get(fmt.Sprintf(series.Coordinates, i)))
			location(n, name, coords, defaultLocationReach, defaultLocationExactness, defaultLocationClass)
		}
	}

	t := a.ds.Tables.Locations
	for _, row := range a.locationIndex.Lookup(aw.Keys.Mechanism) {
		name, ok := m.Text(row.Get(t.Name))
		if !ok {
			continue
		}
		coords, _ := m.Text(row.Get(t.Coordinates))
		location(n, name, coords,
			codeOr(m, row.Get(t.Reach), defaultLocationReach),
			codeOr(m, row.Get(t.Exactness), defaultLocationExactness),
			codeOr(m, row.Get(t.Class), defaultLocationClass),
		)
	}
}

func location(n *types.Node, name, coords, reach, exactness, class string) {
	loc := n.Add("location")
	loc.Add("location-reach", "code", reach)
	loc.Add("name").AddText("narrative", name)
	if coords != "" {
		loc.Add("point", "srsName", srsEPSG4326).AddText("pos", coords)
	}
	loc.Add("exactness", "code", exactness)
	loc.Add("location-class", "code", class)
}

func (a *Assembler) defaultCodes(n *types.Node, row types.Row) {
	m := a.mapper
	c := a.ds.Columns

	codes := []struct {
		element string
		code    string
	}{
		{"collaboration-type", m.Collaboration(row.Get(c.CollaborationType))},
		{"default-flow-type", m.NumericCode(row.Get(c.FlowType))},
		{"default-finance-type", m.NumericCode(row.Get(c.FinanceType))},
		{"default-aid-type", m.Code(row.Get(c.AidType))},
		{"default-tied-status", m.NumericCode(row.Get(c.TiedStatus))},
	}
	for _, dc := range codes {
		if dc.code != "0" && dc.code != "" {
			n.Add(dc.element, "code", dc.code)
		}
	}
}

func (a *Assembler) budget(n *types.Node, row types.Row) {
	m := a.mapper
	c := a.ds.Columns

	amount := FormatAmount(m.Amount(row.Get(c.BudgetAmount)))
	if amount == "0.00" {
		return
	}
	start := m.Date(row.Get(c.BudgetStart), StartLike)
	end := m.Date(row.Get(c.BudgetEnd), EndLike)

	b := n.Add("budget")
	b.Add("period-start", "iso-date", start.ISO)
	b.Add("period-end", "iso-date", end.ISO)
	b.AddText("value", amount, "currency", a.ds.Currency, "value-date", start.ISO)
}

func (a *Assembler) transaction(e TransactionEntry) *types.Node {
	m := a.mapper
	c := a.ds.Columns
	row := e.Row

	date := m.Date(row.Get(c.TransactionDate), StartLike).ISO

	t := types.NewNode("transaction")
	t.Add("transaction-type", "code", fmt.Sprint(int(e.Class)))
	t.Add("transaction-date", "iso-date", date)
	t.AddText("value", e.Amount(), "value-date", date)
	narratives(t.Add("description"), m.Narratives(row, c.TransactionDescription))

	if ch := m.NumericCode(row.Get(c.DisbursementChannel)); ch != "0" {
		t.Add("disbursement-channel", "code", ch)
	}
	if dac := m.NumericCode(row.Get(c.DACPurposeCode)); dac != "0" {
		s := t.Add("sector", "code", dac, "vocabulary", "1")
		if name, ok := m.Text(row.Get(c.DACPurposeName)); ok {
			s.AddText("narrative", name)
		}
	}
	if usg := m.NumericCode(row.Get(c.SectorCode)); usg != "0" {
		s := t.Add("sector", "code", usg, "vocabulary", "99")
		if name, ok := m.Text(row.Get(c.SectorName)); ok {
			s.AddText("narrative", name)
		}
	}
	if isFlagSet(m, row.Get(c.HumanitarianFlag)) {
		if cluster, ok := m.Text(row.Get(c.HumanitarianCluster)); ok {
			t.Add("sector", "code", cluster, "vocabulary", "10")
		}
	}

	if main := m.NumericCode(row.Get(c.TreasuryMainAccount)); main != "0" {
		ta := t.Add("usg:treasury-account")
		if reg := m.NumericCode(row.Get(c.TreasuryRegularAccount)); reg != "0" {
			ta.Add("usg:regular-account", "code", reg)
		}
		title, _ := m.Text(row.Get(c.TreasuryMainTitle))
		ta.AddText("usg:main-account", title, "code", main)
		begin, end := m.FiscalYears(row.Get(c.FundingYearBegin), row.Get(c.FundingYearEnd))
		ta.Add("usg:fiscal-funding-year", "begin", begin, "end", end)
	}
	return t
}

// documentLinks writes inline document series, then documents-table rows.
func (a *Assembler) documentLinks(n *types.Node, aw *AwardPlan) {
	m := a.mapper
	row := aw.Row

	for _, series := range a.ds.Columns.DocumentSeries {
		format, _ := m.Text(row.Get(series.Format))
		category, _ := m.Text(row.Get(series.Category))
		for i := 1; ; i++ {
			title, ok := m.Text(row.Get(fmt.Sprintf(series.Title, i)))
			if !ok {
				break
			}
			url, _ := m.Text(row.Get(fmt.Sprintf(series.Link, i)))
			lang, _ := m.Text(row.Get(fmt.Sprintf(series.Language, i)))
			documentLink(n, title, url, format, category, lang)
		}
	}

	t := a.ds.Tables.Documents
	for _, doc := range a.documentIndex.Lookup(aw.Keys.Mechanism) {
		title, ok := m.Text(doc.Get(t.Title))
		if !ok {
			continue
		}
		url, _ := m.Text(doc.Get(t.URL))
		format, _ := m.Text(doc.Get(t.Format))
		category, _ := m.Text(doc.Get(t.Category))
		lang, _ := m.Text(doc.Get(t.Language))
		documentLink(n, title, url, format, category, lang)
	}
}

func documentLink(n *types.Node, title, url, format, category, lang string) {
	d := n.Add("document-link")
	if url != "" {
		d.SetAttr("url", url)
	}
	if format != "" {
		d.SetAttr("format", format)
	}
	d.Add("title").AddText("narrative", title)
	if category != "" {
		d.Add("category", "code", category)
	}
	if lang != "" {
		d.Add("language", "code", lang)
	}
}

func (a *Assembler) resultNodes(n *types.Node, aw *AwardPlan) {
	m := a.mapper
	t := a.ds.Tables.Results

	for _, row := range a.resultIndex.Lookup(CleanActivityID(aw.Keys.Award)) {
		r := n.Add("result", "type", codeOr(m, row.Get(t.Type), "1"))
		title, ok := m.Text(row.Get(t.Title))
		if !ok {
			title = NoDescription
		}
		r.Add("title").AddText("narrative", title)

		ind := r.Add("indicator", "measure", codeOr(m, row.Get(t.Measure), "1"))
		indicator, ok := m.Text(row.Get(t.Indicator))
		if !ok {
			indicator = NoDescription
		}
		ind.Add("title").AddText("narrative", indicator)

		p := ind.Add("period")
		p.Add("period-start", "iso-date", m.Date(row.Get(t.PeriodStart), StartLike).ISO)
		p.Add("period-end", "iso-date", m.Date(row.Get(t.PeriodEnd), EndLike).ISO)
		p.Add("target", "value", FormatAmount(m.Amount(row.Get(t.Target))))
		p.Add("actual", "value", FormatAmount(m.Amount(row.Get(t.Actual))))
	}
}

// extensions writes the usg: fields, each only when its source is present.
func (a *Assembler) extensions(n *types.Node, row types.Row) {
	m := a.mapper
	c := a.ds.Columns

	if s, ok := m.Text(row.Get(c.ProgramArea)); ok {
		n.Add("usg:program-area").AddText("narrative", s)
	}
	if s, ok := m.Text(row.Get(c.StateLocation)); ok {
		n.Add("usg:state-location").AddText("narrative", s)
	}
	if s, ok := m.Text(row.Get(c.DUNSNumber)); ok {
		n.Add("usg:duns-number").AddText("narrative", strings.TrimSuffix(s, ".0"))
	}
	if tec, ok := ParseAmount(row.Get(c.TEC)); ok {
		n.Add("usg:tec1").AddText("narrative", FormatAmount(tec))
	}
}

// =============================================================================
// SHARED ELEMENTS
// =============================================================================

// activityElement declares English as the default language since English
// narratives carry no xml:lang of their own.
func (a *Assembler) activityElement(hierarchy string) *types.Node {
	return types.NewNode("iati-activity",
		"hierarchy", hierarchy,
		"last-updated-datetime", a.generated,
		"xml:lang", "en",
		"default-currency", a.ds.Currency,
	)
}

func (a *Assembler) reportingOrg(n *types.Node) {
	org := a.ds.ReportingOrg
	r := n.Add("reporting-org")
	setIf(r, "ref", org.Ref)
	setIf(r, "type", org.Type)
	r.AddText("narrative", org.Name)
}

// participatingOrg omits ref and type when they resolve to "".
func (a *Assembler) participatingOrg(n *types.Node, role, ref, orgType, name string) {
	p := n.Add("participating-org")
	setIf(p, "ref", ref)
	p.SetAttr("role", role)
	setIf(p, "type", orgType)
	p.AddText("narrative", name)
}

func (a *Assembler) activityDate(n *types.Node, dateType string, d ResolvedDate) {
	ad := n.Add("activity-date", "iso-date", d.ISO, "type", dateType)
	if d.Fallback {
		ad.AddText("narrative", NoDateNarrative)
	}
}

// status is the reporting status code, "1" (pipeline) when unknown.
func (a *Assembler) status(row types.Row) string {
	return codeOr(a.mapper, row.Get(a.ds.Columns.ReportingStatus), "1")
}

func narratives(n *types.Node, ns []Narrative) {
	for _, nr := range ns {
		if nr.Lang == "" {
			n.AddText("narrative", nr.Text)
		} else {
			n.AddText("narrative", nr.Text, "xml:lang", nr.Lang)
		}
	}
}

func setIf(n *types.Node, name, value string) {
	if value != "" {
		n.SetAttr(name, value)
	}
}

func codeOr(m *FieldMapper, v types.Value, def string) string {
	if code := m.NumericCode(v); code != "0" {
		return code
	}
	return def
}

func isFlagSet(m *FieldMapper, v types.Value) bool {
	s, ok := m.Text(v)
	if !ok {
		return false
	}
	switch strings.ToLower(s) {
	case "1", "1.0", "y", "yes", "true":
		return true
	}
	return false
}
