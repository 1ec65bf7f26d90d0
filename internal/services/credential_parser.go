package services

import (
	"regexp"
	"strings"

	"github.com/MiguelCortes1231/ocrFront/internal/models"
)

// CredentialParser parses OCR text from voter credentials into structured
// fields. The front side is a labeled layout; the back side carries a
// machine-readable zone.
type CredentialParser struct {
	electorKeyPattern   *regexp.Regexp
	curpPattern         *regexp.Regexp
	birthDatePattern    *regexp.Regexp
	regYearPattern      *regexp.Regexp
	sectionPattern      *regexp.Regexp
	validityPattern     *regexp.Regexp
	sexPattern          *regexp.Regexp
	postalPattern       *regexp.Regexp
	neighborhoodPattern *regexp.Regexp
	exteriorPattern     *regexp.Regexp
	labelPattern        *regexp.Regexp
	headerPattern       *regexp.Regexp
	mrzPattern          *regexp.Regexp
	mrzJunkPattern      *regexp.Regexp
}

// NewCredentialParser creates a new credential parser
func NewCredentialParser() *CredentialParser {
	return &CredentialParser{
		// Pattern: CLAVE DE ELECTOR GMVLMR80060509M100 (18 chars)
		electorKeyPattern: regexp.MustCompile(`(?i)CLAVE\s+DE\s+ELECTOR\s*:?\s*([A-Z0-9]{18})`),
		// Pattern: CURP GOVM800605MDFMLR09 (18 chars)
		curpPattern: regexp.MustCompile(`(?i)\bCURP\s*:?\s*([A-Z0-9]{18})`),
		// Pattern: FECHA DE NACIMIENTO 05/06/1980
		birthDatePattern: regexp.MustCompile(`(?i)FECHA\s+DE\s+NACIMIENTO\s*:?\s*(\d{2}[/-]\d{2}[/-]\d{4})`),
		// Pattern: AÑO DE REGISTRO 1998 (OCR often reads Ñ as N)
		regYearPattern: regexp.MustCompile(`(?i)A[NÑ]O\s+DE\s+REGISTRO\s*:?\s*(\d{4})`),
		// Pattern: SECCION 0138
		sectionPattern: regexp.MustCompile(`(?i)SECCI[OÓ]N\s*:?\s*(\d{1,4})\b`),
		// Pattern: VIGENCIA 2024-2034 or VIGENCIA 2034
		validityPattern: regexp.MustCompile(`(?i)VIGENCIA\s*:?\s*(\d{4}(?:\s*-\s*\d{4})?)`),
		// Pattern: SEXO H / SEXO M
		sexPattern:    regexp.MustCompile(`(?i)SEXO\s*:?\s*([HM])\b`),
		postalPattern: regexp.MustCompile(`\b(\d{5})\b`),
		// Pattern: COL JUAREZ / COL. CENTRO
		neighborhoodPattern: regexp.MustCompile(`(?i)\bCOL\.?\s+([A-ZÁÉÍÓÚÑ0-9 ]+?)(?:\s+\d{5}\b|$)`),
		exteriorPattern:     regexp.MustCompile(`\b(\d{1,5}[A-Z]?)\b`),
		// Labeled lines terminate the free-text name and address blocks
		labelPattern:  regexp.MustCompile(`(?i)^(DOMICILIO|CLAVE\s+DE\s+ELECTOR|CURP|A[NÑ]O\s+DE\s+REGISTRO|FECHA\s+DE\s+NACIMIENTO|SECCI[OÓ]N|VIGENCIA|SEXO|ESTADO|MUNICIPIO|LOCALIDAD|EMISI[OÓ]N)\b`),
		headerPattern: regexp.MustCompile(`(?i)(INSTITUTO\s+(NACIONAL|FEDERAL)\s+ELECTORAL|ESTADOS\s+UNIDOS\s+MEXICANOS|CREDENCIAL\s+PARA\s+VOTAR)`),
		// MRZ lines are 24-44 chars of uppercase, digits and fillers
		mrzPattern:     regexp.MustCompile(`^[A-Z0-9<]{24,44}$`),
		mrzJunkPattern: regexp.MustCompile(`[^A-Z0-9<]`),
	}
}

// ParseFront parses front-side OCR text into structured fields
func (p *CredentialParser) ParseFront(ocrText string) *models.FrontFields {
	fields := &models.FrontFields{}
	lines := splitLines(ocrText)

	if m := p.electorKeyPattern.FindStringSubmatch(ocrText); m != nil {
		fields.ElectorKey = strings.ToUpper(m[1])
	}
	if m := p.curpPattern.FindStringSubmatch(ocrText); m != nil {
		fields.CURP = strings.ToUpper(m[1])
	}
	if m := p.birthDatePattern.FindStringSubmatch(ocrText); m != nil {
		fields.BirthDate = m[1]
	}
	if m := p.regYearPattern.FindStringSubmatch(ocrText); m != nil {
		fields.RegistrationYear = m[1]
	}
	if m := p.sectionPattern.FindStringSubmatch(ocrText); m != nil {
		fields.Section = m[1]
	}
	if m := p.validityPattern.FindStringSubmatch(ocrText); m != nil {
		fields.Validity = strings.ReplaceAll(m[1], " ", "")
	}
	if m := p.sexPattern.FindStringSubmatch(ocrText); m != nil {
		fields.Sex = strings.ToUpper(m[1])
	}

	fields.FullName = p.extractBlock(lines, "NOMBRE")
	p.extractAddress(lines, fields)

	hasHeader := p.headerPattern.MatchString(ocrText)
	if hasHeader {
		fields.Country = "MEXICO"
	}
	fields.ValidCredential = hasHeader && (fields.ElectorKey != "" || fields.CURP != "")

	return fields
}

// ParseBack parses back-side OCR text: collects the machine-readable zone and
// derives the holder's name parts from its third line
func (p *CredentialParser) ParseBack(ocrText string) *models.BackFields {
	fields := &models.BackFields{}

	for _, line := range splitLines(ocrText) {
		cleaned := p.mrzJunkPattern.ReplaceAllString(strings.ToUpper(line), "")
		if !p.mrzPattern.MatchString(cleaned) {
			continue
		}
		// Require a filler or document prefix so serial numbers and other
		// long tokens don't slip in
		if !strings.Contains(cleaned, "<") && !strings.HasPrefix(cleaned, "ID") {
			continue
		}
		fields.MRZLines = append(fields.MRZLines, cleaned)
		if len(fields.MRZLines) == 3 {
			break
		}
	}

	if len(fields.MRZLines) >= 2 {
		p.parseMRZName(fields)
	}

	fields.ValidCredential = len(fields.MRZLines) >= 2 &&
		strings.HasPrefix(fields.MRZLines[0], "IDMEX")

	return fields
}

// parseMRZName splits the last MRZ line, formatted as
// PATERNAL<MATERNAL<<GIVEN<NAMES, into its name parts
func (p *CredentialParser) parseMRZName(fields *models.BackFields) {
	nameLine := fields.MRZLines[len(fields.MRZLines)-1]
	if !strings.Contains(nameLine, "<<") {
		return
	}

	parts := strings.SplitN(nameLine, "<<", 2)
	surnames := splitFillers(parts[0])
	if len(surnames) > 0 {
		fields.PaternalSurname = surnames[0]
	}
	if len(surnames) > 1 {
		fields.MaternalSurname = strings.Join(surnames[1:], " ")
	}
	fields.GivenNames = strings.Join(splitFillers(parts[1]), " ")
}

// extractBlock collects the free-text lines following a label until the next
// labeled line
func (p *CredentialParser) extractBlock(lines []string, label string) string {
	var collected []string
	inBlock := false

	for _, line := range lines {
		upper := strings.ToUpper(line)
		if !inBlock {
			if strings.HasPrefix(upper, label) {
				inBlock = true
				// Value may share the label's line
				rest := strings.TrimSpace(line[len(label):])
				if rest != "" {
					collected = append(collected, rest)
				}
			}
			continue
		}
		if p.labelPattern.MatchString(line) {
			break
		}
		collected = append(collected, line)
	}

	return strings.Join(collected, " ")
}

// extractAddress fills the address fields from the DOMICILIO block
func (p *CredentialParser) extractAddress(lines []string, fields *models.FrontFields) {
	block := p.extractBlock(lines, "DOMICILIO")
	if block == "" {
		return
	}

	fields.Street = block
	if m := p.neighborhoodPattern.FindStringSubmatch(block); m != nil {
		fields.Neighborhood = strings.TrimSpace(strings.ToUpper(m[1]))
		// The street proper ends where the neighborhood starts
		if idx := p.neighborhoodPattern.FindStringIndex(block); idx != nil && idx[0] > 0 {
			fields.Street = strings.TrimSpace(block[:idx[0]])
		}
	}
	if m := p.postalPattern.FindStringSubmatch(block); m != nil {
		fields.PostalCode = m[1]
	}
	if m := p.exteriorPattern.FindStringSubmatch(fields.Street); m != nil {
		fields.ExteriorNumber = m[1]
	}
	// The state abbreviation trails the final comma: "06600 CUAUHTEMOC, CDMX"
	if idx := strings.LastIndex(block, ","); idx != -1 && idx+1 < len(block) {
		fields.State = strings.TrimSpace(block[idx+1:])
	}
}

// splitLines splits OCR output into trimmed non-empty lines
func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitFillers splits an MRZ field on '<' fillers, dropping empties
func splitFillers(s string) []string {
	var parts []string
	for _, part := range strings.Split(s, "<") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
