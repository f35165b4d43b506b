// Package vcard builds the vCard 3.0 payload encoded into badge QR codes.
package vcard

import "strings"

// Card 是二维码中携带的联系人信息。
type Card struct {
	Name     string
	Email    string
	JobTitle string
	Company  string
}

// Generate 生成 vCard 文本。姓名按空格拆分：首段为名，末段为姓，中间为中间名。
func Generate(c Card) string {
	parts := strings.Fields(c.Name)
	var first, last, middle string
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	if len(parts) > 2 {
		middle = strings.Join(parts[1:len(parts)-1], " ")
	}

	lines := []string{
		"BEGIN:VCARD",
		"VERSION:3.0",
		"FN:" + strings.TrimSpace(c.Name),
		"N:" + last + ";" + first + ";" + middle + ";;",
	}
	if c.Company != "" {
		lines = append(lines, "ORG:"+c.Company)
	}
	if c.JobTitle != "" {
		lines = append(lines, "TITLE:"+c.JobTitle)
	}
	if c.Email != "" {
		lines = append(lines, "EMAIL:"+c.Email)
	}
	lines = append(lines, "END:VCARD")
	return strings.Join(lines, "\n")
}
