package mcpserver

import "time"

// timeZero lets the service pick the current time.
var timeZero time.Time

// JournalFormatContract describes the journal text the tools accept.
const JournalFormatContract = `# Chronicle Journal Format

A journal is plain text containing one tagged block per entry. Anything
outside entry blocks is ignored.

## Structure

` + "```" + `xml
<entry>
  <date>2025-01-15</date>           <!-- REQUIRED: see date forms below -->
  <text>What happened today.</text> <!-- REQUIRED: non-empty body -->
  <journal>Daily</journal>          <!-- OPTIONAL -->
  <location>Lisbon</location>       <!-- OPTIONAL -->
</entry>
` + "```" + `

## Rules

1. Blocks are ` + "`<entry>`" + ` or ` + "`<journal_entry>`" + `; both may appear in one file.
2. The date comes from ` + "`<date>`" + `, a ` + "`date=\"...\"`" + ` attribute, or ` + "`<created>`" + `,
   ` + "`<created_at>`" + `, ` + "`<timestamp>`" + `, in that order. The first value that parses wins.
3. The body comes from ` + "`<text>`" + `, ` + "`<content>`" + ` or ` + "`<body>`" + `. Without one, the
   whole block minus metadata tags is used.
4. Entries without a parseable date or with an empty body are skipped.
5. CDATA sections and HTML entities are decoded.

## Date forms

- ISO-8601 dates and datetimes (` + "`2025-01-15`" + `, ` + "`2025-01-15T08:30:00Z`" + `)
- ` + "`January 15, 2025`" + `, ` + "`Jan 15, 2025`" + `, ` + "`15th January 2025`" + `
- ` + "`01/15/2025`" + ` (month first)
- Unix timestamps in seconds or milliseconds

Values without a zone are read as UTC.

## Tiers

Entries younger than 14 days are used in full. Entries 14 to 89 days old are
summarized per week, older ones per month. Summaries are cached by content, so
editing an old entry only re-summarizes its period.
`
