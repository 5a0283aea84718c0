package templates

// cell returns row[j], or "" for a short row.
func cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}
