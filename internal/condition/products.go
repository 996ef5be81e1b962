package condition

import (
	"github.com/pauljones0/aki-watcher/internal/models"
	"github.com/pauljones0/aki-watcher/internal/util"
)

// scanProducts extracts named products from content in first-appearance order,
// skipping repeated names and names on the exclude list.
func (e *Evaluator) scanProducts(content string, scan ProductScan) []models.Product {
	if scan.Name == nil {
		return nil
	}

	excluded := make(map[string]bool, len(scan.Exclude))
	for _, name := range scan.Exclude {
		excluded[util.NormalizeSpace(name)] = true
	}

	seen := make(map[string]bool)
	var products []models.Product
	for _, loc := range scan.Name.FindAllStringSubmatchIndex(content, -1) {
		start, end := loc[0], loc[1]
		if len(loc) >= 4 && loc[2] >= 0 {
			start, end = loc[2], loc[3]
		}
		name := util.NormalizeSpace(content[start:end])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		if excluded[name] {
			continue
		}

		product := models.Product{Name: name}
		if scan.URL != nil {
			product.URL = e.productURL(content, loc[1], scan)
		}
		products = append(products, product)
	}
	return products
}

// productURL looks for the first URL match in the window starting at offset.
func (e *Evaluator) productURL(content string, offset int, scan ProductScan) string {
	end := offset + e.urlWindow
	if end > len(content) {
		end = len(content)
	}
	m := scan.URL.FindStringSubmatch(content[offset:end])
	if m == nil {
		return ""
	}
	href := m[0]
	if len(m) > 1 && m[1] != "" {
		href = m[1]
	}
	return util.ResolveURL(scan.BaseURL, href)
}
