package recon

import "slices"

// NotRunWorklist lists, per destination site, the identifiers received there
// with no recorded run at either site. Both columns have the same length;
// the shorter one is padded with Missing.
type NotRunWorklist struct {
	SiteA string
	SiteB string
	A     []Value
	B     []Value
}

// Header returns the column names.
func (w NotRunWorklist) Header() []string { return []string{w.SiteA, w.SiteB} }

// Len returns the padded row count.
func (w NotRunWorklist) Len() int { return len(w.A) }

// Rows returns the worklist row by row.
func (w NotRunWorklist) Rows() [][]Value {
	rows := make([][]Value, w.Len())
	for i := range rows {
		rows[i] = []Value{w.A[i], w.B[i]}
	}
	return rows
}

// Identifiers returns the non-missing entries of the column for site.
func (w NotRunWorklist) Identifiers(site string) []string {
	var col []Value
	switch site {
	case w.SiteA:
		col = w.A
	case w.SiteB:
		col = w.B
	}
	var out []string
	for _, v := range col {
		if v.Valid {
			out = append(out, v.S)
		}
	}
	return out
}

type worklistRow struct {
	id       string
	to       string
	received bool
	runA     bool
	runB     bool
}

// BuildNoDataWorklist derives the received-but-no-data worklist. siteA is the
// primary site whose runs live in DATE_RUN_BROAD, siteB the third-party site
// whose runs live in DATE_RUN_VIVA. Rows for other destinations are ignored.
// Cells are trimmed and blank cells count as missing before any comparison.
func BuildNoDataWorklist(table ReconciledTable, siteA, siteB string) NotRunWorklist {
	rows := make([]worklistRow, 0, len(table.Records))
	for _, rec := range table.Records {
		if !rec.To.Valid || (rec.To.S != siteA && rec.To.S != siteB) {
			continue
		}
		id := Text(rec.Identifier).Trim()
		if !id.Valid {
			continue
		}
		rows = append(rows, worklistRow{
			id:       id.S,
			to:       rec.To.Trim().S,
			received: rec.DateReceived.Trim().Valid,
			runA:     rec.DateRunBroad.Trim().Valid,
			runB:     rec.DateRunViva.Trim().Valid,
		})
	}

	noRunA := make(map[string]struct{})
	noRunB := make(map[string]struct{})
	for _, r := range rows {
		if !r.received {
			continue
		}
		if !r.runA {
			noRunA[r.id] = struct{}{}
		}
		if !r.runB {
			noRunB[r.id] = struct{}{}
		}
	}
	noData := make(map[string]struct{})
	for id := range noRunA {
		if _, ok := noRunB[id]; ok {
			noData[id] = struct{}{}
		}
	}

	colA := collectSite(rows, noData, siteA, func(r worklistRow) bool { return !r.runA })
	colB := collectSite(rows, noData, siteB, func(r worklistRow) bool { return !r.runB })
	n := max(len(colA), len(colB))
	return NotRunWorklist{
		SiteA: siteA,
		SiteB: siteB,
		A:     pad(colA, n),
		B:     pad(colB, n),
	}
}

func collectSite(rows []worklistRow, noData map[string]struct{}, site string, notRun func(worklistRow) bool) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		if r.to != site || !r.received || !notRun(r) {
			continue
		}
		if _, ok := noData[r.id]; !ok {
			continue
		}
		if _, dup := seen[r.id]; dup {
			continue
		}
		seen[r.id] = struct{}{}
		out = append(out, r.id)
	}
	slices.Sort(out)
	return out
}

func pad(ids []string, n int) []Value {
	out := make([]Value, n)
	for i, id := range ids {
		out[i] = Text(id)
	}
	return out
}
