// Package export writes finished buyer-group results to downstream systems:
// XLSX workbooks for sellers, Salesforce records for CRM sync, and Notion
// pages for research review.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/buyergroup-cli/internal/model"
)

var memberHeader = []string{
	"Name", "Title", "Department", "Seniority", "Role", "Role Score",
	"Quality", "Email", "Phone", "Profile URL", "Sources", "Rationale",
}

// WriteXLSX renders a buyer-group result as a two-sheet workbook: a summary
// sheet for the request and a members sheet with one row per group member.
func WriteXLSX(result *model.BuyerGroupResult, path string) error {
	if result == nil {
		return eris.New("export: nil result")
	}

	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	writeSummary(summary, result)

	members, err := f.AddSheet("Buyer Group")
	if err != nil {
		return eris.Wrap(err, "export: add members sheet")
	}
	writeMembers(members, result.Members)

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, fmt.Sprintf("export: save workbook %s", path))
	}
	return nil
}

func writeSummary(sheet *xlsx.Sheet, result *model.BuyerGroupResult) {
	kv := func(key string, set func(*xlsx.Cell)) {
		row := sheet.AddRow()
		row.AddCell().Value = key
		set(row.AddCell())
	}

	kv("Request ID", func(c *xlsx.Cell) { c.Value = result.RequestID })
	kv("Company", func(c *xlsx.Cell) { c.Value = result.CompanyName })
	kv("Tier", func(c *xlsx.Cell) { c.Value = string(result.Tier) })
	kv("State", func(c *xlsx.Cell) { c.Value = string(result.State) })
	kv("Members", func(c *xlsx.Cell) { c.SetInt(len(result.Members)) })
	kv("Cohesion", func(c *xlsx.Cell) { c.SetFloat(result.CohesionScore) })
	kv("Total Cost USD", func(c *xlsx.Cell) { c.SetFloat(result.TotalCostUSD) })
	kv("Elapsed", func(c *xlsx.Cell) { c.Value = result.Elapsed.String() })
	kv("Degraded", func(c *xlsx.Cell) { c.SetBool(result.Degraded) })
	kv("Partial", func(c *xlsx.Cell) { c.SetBool(result.Partial) })
	kv("Sources", func(c *xlsx.Cell) { c.Value = strings.Join(result.SourcesUsed, ", ") })
	if len(result.Warnings) > 0 {
		kv("Warnings", func(c *xlsx.Cell) { c.Value = strings.Join(result.Warnings, "; ") })
	}
}

func writeMembers(sheet *xlsx.Sheet, members []model.Member) {
	header := sheet.AddRow()
	for _, h := range memberHeader {
		header.AddCell().Value = h
	}

	for _, m := range members {
		row := sheet.AddRow()
		row.AddCell().Value = m.Candidate.Str(model.FieldName)
		row.AddCell().Value = m.Candidate.Str(model.FieldTitle)
		row.AddCell().Value = m.Candidate.Str(model.FieldDepartment)
		row.AddCell().Value = m.Candidate.Str(model.FieldSeniority)
		row.AddCell().Value = string(m.Role.Role)
		row.AddCell().SetFloat(m.Role.Score)
		row.AddCell().SetInt(m.Quality.Overall)
		row.AddCell().Value = m.Candidate.Str(model.FieldEmail)
		row.AddCell().Value = m.Candidate.Str(model.FieldPhone)
		row.AddCell().Value = m.Candidate.Str(model.FieldProfileURL)
		row.AddCell().Value = strings.Join(m.Candidate.Providers, ", ")
		row.AddCell().Value = strings.Join(m.Role.Rationale, "; ")
	}
}
