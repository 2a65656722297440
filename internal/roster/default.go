package roster

// Default returns the built-in roster: the full evidence pipeline of sixteen
// leaf agents folded into six display groups. Operators can replace it with a
// YAML file via the roster config path.
func Default() *Roster {
	r, err := New(defaultGroups, defaultAgents)
	if err != nil {
		// The built-in table is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return r
}

var defaultGroups = []Group{
	{
		ID:          "literature",
		Name:        "Scientific Literature",
		Icon:        "book-open",
		Description: "Published research, reviews and preprints",
		Members:     []string{"pubmed", "europepmc", "biorxiv"},
	},
	{
		ID:          "clinical",
		Name:        "Clinical Trials",
		Icon:        "stethoscope",
		Description: "Registered and ongoing clinical studies",
		Members:     []string{"clinicaltrials", "eudract"},
	},
	{
		ID:          "patents",
		Name:        "Patents",
		Icon:        "scale",
		Description: "Patent filings and grant databases",
		Members:     []string{"uspto", "epo", "wipo"},
	},
	{
		ID:          "regulatory",
		Name:        "Regulatory",
		Icon:        "clipboard-check",
		Description: "Approvals, labels and regulatory guidance",
		Members:     []string{"fda", "ema"},
	},
	{
		ID:          "market",
		Name:        "Market Intelligence",
		Icon:        "trending-up",
		Description: "Market reports, competitors and pricing",
		Members:     []string{"market_reports", "competitor_scan", "pricing"},
	},
	{
		ID:          "web",
		Name:        "Web & News",
		Icon:        "globe",
		Description: "Open web search, news and company sources",
		Members:     []string{"web_search", "news", "company_sites"},
	},
}

var defaultAgents = []Agent{
	{ID: "pubmed", Name: "PubMed", Icon: "database", Description: "MEDLINE citation search"},
	{ID: "europepmc", Name: "Europe PMC", Icon: "database", Description: "European literature aggregator"},
	{ID: "biorxiv", Name: "bioRxiv", Icon: "flask", Description: "Preprint server search"},
	{ID: "clinicaltrials", Name: "ClinicalTrials.gov", Icon: "stethoscope", Description: "US trial registry"},
	{ID: "eudract", Name: "EudraCT", Icon: "stethoscope", Description: "EU trial registry"},
	{ID: "uspto", Name: "USPTO", Icon: "scale", Description: "US patent full-text search"},
	{ID: "epo", Name: "EPO", Icon: "scale", Description: "European patent register"},
	{ID: "wipo", Name: "WIPO", Icon: "scale", Description: "International patent filings"},
	{ID: "fda", Name: "FDA", Icon: "clipboard-check", Description: "US approvals and labels"},
	{ID: "ema", Name: "EMA", Icon: "clipboard-check", Description: "EU medicines agency"},
	{ID: "market_reports", Name: "Market Reports", Icon: "trending-up", Description: "Industry report retrieval"},
	{ID: "competitor_scan", Name: "Competitor Scan", Icon: "users", Description: "Competitor landscape scan"},
	{ID: "pricing", Name: "Pricing", Icon: "banknote", Description: "Pricing and reimbursement data"},
	{ID: "web_search", Name: "Web Search", Icon: "globe", Description: "General web search"},
	{ID: "news", Name: "News", Icon: "newspaper", Description: "News wire monitoring"},
	{ID: "company_sites", Name: "Company Sites", Icon: "building", Description: "Company website crawling"},
	{ID: ReportAgentID, Name: "Report Generator", Icon: "file-text", Description: "Final report assembly"},
}
