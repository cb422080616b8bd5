package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/iati-activity-converter/internal/types"
)

// single converts one primary table and returns the only document's root.
func single(t *testing.T, inputs Inputs, opts Options) *types.Node {
	t.Helper()
	docs, _ := run(t, dataset(t, "2016"), inputs, opts)
	require.Len(t, docs, 1)
	return docs[0].Root
}

func TestAwardChildOrder(t *testing.T) {
	root := single(t, Inputs{Primary: primaryTable(kenyaRow("AID-1", "Commitment", "500"))}, Options{})
	require.Len(t, root.Children, 2)

	award := root.Children[1]
	assert.Equal(t, "3", attr(t, award, "hierarchy"))
	assert.Equal(t, []string{
		"iati-identifier",
		"reporting-org",
		"title",
		"description",
		"participating-org",
		"participating-org",
		"participating-org",
		"participating-org",
		"activity-status",
		"activity-date",
		"activity-date",
		"activity-date",
		"contact-info",
		"recipient-country",
		"collaboration-type",
		"budget",
		"transaction",
		"related-activity",
		"conditions",
		"usg:mechanism-signing-date",
	}, award.ChildNames())
}

func TestActivityElement(t *testing.T) {
	root := single(t, Inputs{Primary: primaryTable(
		kenyaRow("AID-1", "Commitment", "500"),
		kenyaRow("AID-2", "Commitment", "100"),
	)}, Options{})

	assert.Equal(t, "2.01", attr(t, root, "version"))
	assert.Equal(t, "2017-06-01T12:00:00.000Z", attr(t, root, "generated-datetime"))

	activity := root.Children[0]
	assert.Equal(t, "1", attr(t, activity, "hierarchy"))
	assert.Equal(t, "US-1-KE-30", activity.Find("iati-identifier").Text)
	assert.Equal(t, "US-Kenya-U.S. Agency for International Development-Health",
		activity.Find("title").Find("narrative").Text)
	assert.Contains(t, activity.Find("description").Find("narrative").Text, "health of people")

	related := activity.FindAll("related-activity")
	require.Len(t, related, 2)
	assert.Equal(t, "US-1-KE-30-AID-1", attr(t, related[0], "ref"))
	assert.Equal(t, "US-1-KE-30-AID-2", attr(t, related[1], "ref"))
	assert.Equal(t, "2", attr(t, related[1], "type"))

	date := activity.Find("activity-date")
	assert.Equal(t, "2017-01-15", attr(t, date, "iso-date"))
	assert.Nil(t, date.Find("narrative"))
}

func TestActivityLanguageIsEnglish(t *testing.T) {
	ds := dataset(t, "2016")
	ds.Languages = []string{"fr", "en"}
	docs, _ := run(t, ds, Inputs{Primary: primaryTable(kenyaRow("AID-1", "Commitment", "1"))}, Options{})
	require.Len(t, docs, 1)

	for _, activity := range docs[0].Root.Children {
		assert.Equal(t, "en", attr(t, activity, "xml:lang"))

		title := activity.Find("title").FindAll("narrative")
		require.Len(t, title, 2)
		assert.Equal(t, "fr", attr(t, title[0], "xml:lang"))
		_, tagged := title[1].Attr("xml:lang")
		assert.False(t, tagged)
	}
}

func TestActivityTitleWorldwide(t *testing.T) {
	r := kenyaRow("AID-1", "Commitment", "1")
	r[colCountryName] = ""
	r[colCategory] = ""
	root := single(t, Inputs{Primary: primaryTable(r)}, Options{})

	assert.Equal(t, "US-Worldwide-U.S. Agency for International Development-None Found",
		root.Children[0].Find("title").Find("narrative").Text)
}

func TestParticipatingOrgRefs(t *testing.T) {
	root := single(t, Inputs{Primary: primaryTable(kenyaRow("AID-1", "Commitment", "1"))}, Options{})
	orgs := root.Children[1].FindAll("participating-org")
	require.Len(t, orgs, 4)

	assert.Equal(t, "US-11", attr(t, orgs[2], "ref"))
	assert.Equal(t, "10", attr(t, orgs[2], "type"))
	assert.Equal(t, "Dept of State", orgs[2].Find("narrative").Text)

	_, hasRef := orgs[3].Attr("ref")
	assert.False(t, hasRef, "unmapped implementing agent must not carry a ref")
	assert.Equal(t, "4", attr(t, orgs[3], "role"))
	assert.Equal(t, "Some NGO", orgs[3].Find("narrative").Text)
}

func TestMissingAgencyName(t *testing.T) {
	r := kenyaRow("AID-1", "Commitment", "1")
	r[colAgency] = ""
	root := single(t, Inputs{Primary: primaryTable(r)}, Options{})

	org := root.Children[1].FindAll("participating-org")[2]
	assert.Equal(t, "US-USAGOV", attr(t, org, "ref"))
	assert.Equal(t, "--", org.Find("narrative").Text)
}

func TestRecipientCountryOrRegion(t *testing.T) {
	regional := kenyaRow("AID-1", "Commitment", "1")
	regional[colRegion] = "298"
	root := single(t, Inputs{Primary: primaryTable(regional)}, Options{})
	award := root.Children[1]

	assert.Nil(t, award.Find("recipient-country"))
	region := award.Find("recipient-region")
	require.NotNil(t, region)
	assert.Equal(t, "298", attr(t, region, "code"))
	assert.Equal(t, "100", attr(t, region, "percentage"))

	namibia := kenyaRow("AID-2", "Commitment", "1")
	namibia[colISO] = ""
	namibia[colCountryCode] = "275"
	root = single(t, Inputs{Primary: primaryTable(namibia)}, Options{})
	country := root.Children[1].Find("recipient-country")
	require.NotNil(t, country)
	assert.Equal(t, "NA", attr(t, country, "code"))
}

func TestBudgetOmittedWhenZero(t *testing.T) {
	r := kenyaRow("AID-1", "Commitment", "1")
	r[colBudget] = "0"
	root := single(t, Inputs{Primary: primaryTable(r)}, Options{})
	assert.Nil(t, root.Children[1].Find("budget"))

	r[colBudget] = "2500.5"
	root = single(t, Inputs{Primary: primaryTable(r)}, Options{})
	value := root.Children[1].Find("budget").Find("value")
	assert.Equal(t, "2500.50", value.Text)
	assert.Equal(t, "USD", attr(t, value, "currency"))
}

func TestActualDatesOnlyWhenHappened(t *testing.T) {
	r := kenyaRow("AID-1", "Commitment", "1")
	r[colStart] = ""
	root := single(t, Inputs{Primary: primaryTable(r)}, Options{})

	dates := root.Children[1].FindAll("activity-date")
	require.Len(t, dates, 3)

	assert.Equal(t, "1", attr(t, dates[0], "type"))
	assert.Equal(t, "2016-10-01", attr(t, dates[0], "iso-date"))
	assert.Equal(t, NoDateNarrative, dates[0].Find("narrative").Text)
	assert.Equal(t, "2", attr(t, dates[1], "type"))
	assert.Equal(t, "3", attr(t, dates[2], "type"))
	assert.Equal(t, "2018-12-31", attr(t, dates[2], "iso-date"))
}

func TestTransactionElement(t *testing.T) {
	root := single(t, Inputs{Primary: primaryTable(kenyaRow("AID-1", "Disbursement", "750.5"))}, Options{})
	tx := root.Children[1].Find("transaction")
	require.NotNil(t, tx)

	assert.Equal(t, []string{"transaction-type", "transaction-date", "value", "description", "sector"}, tx.ChildNames())
	assert.Equal(t, "3", attr(t, tx.Find("transaction-type"), "code"))
	assert.Equal(t, "750.50", tx.Find("value").Text)
	assert.Equal(t, "2017-01-15", attr(t, tx.Find("value"), "value-date"))
	assert.Equal(t, NoDescription, tx.Find("description").Find("narrative").Text)

	sector := tx.Find("sector")
	assert.Equal(t, "30101", attr(t, sector, "code"))
	assert.Equal(t, "99", attr(t, sector, "vocabulary"))
}

func TestAuxiliaryJoins(t *testing.T) {
	ds := dataset(t, "2016")
	lt, dt, rt := ds.Tables.Locations, ds.Tables.Documents, ds.Tables.Results

	locations := tableFromMaps("locations", []string{lt.JoinColumn, lt.Name, lt.Coordinates},
		map[string]string{lt.JoinColumn: "AID-1", lt.Name: "Kisumu", lt.Coordinates: "-0.09 34.76"},
		map[string]string{lt.JoinColumn: "AID-9", lt.Name: "Elsewhere"},
	)
	documents := tableFromMaps("documents", []string{dt.JoinColumn, dt.Title, dt.URL, dt.Format},
		map[string]string{dt.JoinColumn: "AID-1", dt.Title: "Mid-term review", dt.URL: "http://example.org/r.pdf", dt.Format: "application/pdf"},
	)
	results := tableFromMaps("results", []string{rt.JoinColumn, rt.Indicator, rt.Target, rt.Actual},
		map[string]string{rt.JoinColumn: "US-1-KE-30-AID-1 ", rt.Indicator: "Clinics built", rt.Target: "10", rt.Actual: "7"},
	)

	docs, _ := run(t, ds, Inputs{
		Primary:   primaryTable(kenyaRow("AID-1", "Commitment", "1")),
		Locations: locations,
		Documents: documents,
		Results:   results,
	}, Options{})
	award := docs[0].Root.Children[1]

	locs := award.FindAll("location")
	require.Len(t, locs, 1)
	assert.Equal(t, "Kisumu", locs[0].Find("name").Find("narrative").Text)
	assert.Equal(t, "-0.09 34.76", locs[0].Find("point").Find("pos").Text)
	assert.Equal(t, "2", attr(t, locs[0].Find("location-reach"), "code"))

	link := award.Find("document-link")
	require.NotNil(t, link)
	assert.Equal(t, "http://example.org/r.pdf", attr(t, link, "url"))
	assert.Equal(t, "Mid-term review", link.Find("title").Find("narrative").Text)

	result := award.Find("result")
	require.NotNil(t, result)
	period := result.Find("indicator").Find("period")
	assert.Equal(t, "10.00", attr(t, period.Find("target"), "value"))
	assert.Equal(t, "7.00", attr(t, period.Find("actual"), "value"))

	names := award.ChildNames()
	assert.Less(t, indexOf(names, "location"), indexOf(names, "budget"))
	assert.Less(t, indexOf(names, "transaction"), indexOf(names, "document-link"))
	assert.Less(t, indexOf(names, "document-link"), indexOf(names, "result"))
	assert.Less(t, indexOf(names, "result"), indexOf(names, "related-activity"))
}

func TestNestAwards(t *testing.T) {
	inputs := Inputs{Primary: primaryTable(
		kenyaRow("AID-1", "Commitment", "1"),
		kenyaRow("AID-2", "Commitment", "1"),
	)}

	flat := single(t, inputs, Options{})
	assert.Len(t, flat.Children, 3)

	nested := single(t, inputs, Options{NestAwards: true})
	require.Len(t, nested.Children, 1)
	activity := nested.Children[0]
	awards := activity.FindAll("iati-activity")
	require.Len(t, awards, 2)
	assert.Equal(t, "3", attr(t, awards[0], "hierarchy"))
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
