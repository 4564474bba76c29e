package main

import (
	"fmt"
	"io"
	"strconv"

	"linkcheck/internal/pipeline"
	"linkcheck/internal/textutil"
)

const (
	linkTextWidth = 36
	itemNameWidth = 48
)

var recordColumns = []column{
	{Header: "#", Align: alignRight},
	{Header: "Link text", MaxWidth: linkTextWidth},
	{Header: "Item", MaxWidth: itemNameWidth},
	{Header: "Tag"},
	{Header: "Valid", Align: alignCenter},
	{Header: "ASIN"},
}

func renderRecords(records []pipeline.DisplayRecord) string {
	rows := make([][]string, 0, len(records))
	valid := 0
	for i, rec := range records {
		if rec.ValidOnAmazon {
			valid++
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			textutil.Truncate(textutil.NormalizeLinkText(rec.URLText), linkTextWidth*2),
			rec.ItemName,
			rec.Tag,
			yesNo(rec.ValidOnAmazon),
			rec.ASIN,
		})
	}
	footer := []string{"", fmt.Sprintf("%d links", len(records)), fmt.Sprintf("%d valid", valid)}
	return renderTable(recordColumns, rows, footer)
}

func printRecords(out io.Writer, records []pipeline.DisplayRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No links found")
		return
	}
	fmt.Fprintln(out, renderRecords(records))
}
