package descriptions

// Tool descriptions shown to MCP clients, with examples and workflows

const (
	ConvertDescription = `Convert a vendor technical specification PDF into the filled company form (.docx).

**When to use:** A spec sheet PDF for a product has arrived and the company form needs its color, specific gravity,
refractive index, product name and issue date filled in.

**Why it's useful:** Reads the PDF text layer, applies the mode's extraction rules, computes the tolerance bands and
writes a ready-to-send Word document into the output directory.

**Modes:**
• CFF: plain label layout ("COLOR :", "SPECIFIC GRAVITY (20℃) : 0.950 ± 0.02")
• HP: labels marked with ■ ("■ COLOR : ... ■ APPEARANCE :")
• HPD: ■-marked labels with a tighter refractive index band

**Examples:**
• "Convert rose-oil-spec.pdf for product ROSE OIL 2024 in HP mode"
• "Fill the company form from incoming/lavender.pdf, mode CFF, product LAVENDER A, save as forms/lavender.docx"

**Common workflows:**
1. Check first: specform_preview → review fields → specform_convert
2. Bulk intake: specform_server_info → pick PDFs listed in the work directory → specform_convert each

**Best practices:** Fields that could not be found fall back to the mode's defaults; the response says which were
extracted. A failure names its kind (MISSING_INPUT, EXTRACTION_FAILURE, TEMPLATE_FAILURE) with a hint.`

	PreviewDescription = `Show the field values a conversion would produce, without writing a document.

**When to use:** Before converting, to confirm the PDF's layout matches the chosen mode and the extracted values look
right.

**Why it's useful:** Reports every field (PRODUCT, COLOR, SG, RI, DATE) and whether it was extracted from the PDF or
taken from the mode's defaults.

**Examples:**
• "Preview the values in spec-0311.pdf for product CITRUS BASE in CFF mode"
• "Which fields defaulted for amber.pdf in HPD mode?"

**Best practices:** If COLOR, SG and RI all defaulted, the PDF probably uses a different mode's label layout.`

	ServerInfoDescription = `Get server configuration, supported modes, template health and the PDFs available in the
work directory.

**When to use:** At the start of a session, or when a conversion reports a template failure.

**Why it's useful:** Shows the active variant and population strategy, the template location and whether it can be
read, and lists candidate PDFs with their sizes.

**Examples:**
• "Which modes does this server support?"
• "List the spec sheets waiting in the work directory"`
)

// Tool names
const (
	ConvertTool    = "specform_convert"
	PreviewTool    = "specform_preview"
	ServerInfoTool = "specform_server_info"
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ConvertTool:    ConvertDescription,
	PreviewTool:    PreviewDescription,
	ServerInfoTool: ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in registration order
func GetAllToolNames() []string {
	return []string{ConvertTool, PreviewTool, ServerInfoTool}
}
