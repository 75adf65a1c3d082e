// Package core provides the bulk transfer pipeline for person records.
//
// This package contains the domain logic independent of any transport or
// storage engine. It can be used by web handlers, the CLI, or tests without
// modification; persistence is reached through [BatchWriter] and
// [RecordSource].
//
// # Pipeline
//
//   - Import: [Importer] streams a semicolon-separated file through
//     [ParseLine] and hands batches of [DefaultBatchSize] records to a
//     [BatchWriter].
//   - Spreadsheet export: [TabularExporter] writes the selected [Field]s into
//     pages of at most [DefaultPageSize] rows. A multi-page export names its
//     files base_1.ext, base_2.ext and so on; see [PagePath].
//   - XML export: [MarkupExporter] streams every record into one document
//     under a <TestProgram> root.
//
// Each stage reports [Progress] over a caller-owned channel. Processed never
// decreases and the last sample has Processed == Total.
//
// # Operations
//
// [Service] runs the stages as background operations. An [OperationGuard]
// admits one operation at a time; a second start fails immediately with
// [ErrOperationInProgress]. Progress is broadcast to subscribers via
// [Service.SubscribeProgress] and the outcome is available from
// [Service.Result] until the retention period expires.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError]:
//
//   - IMP001-IMP003: Import errors (missing file, failed batch, long line)
//   - EXP001-EXP002: Export errors (no fields, unwritable destination)
//   - OPS001-OPS004: Operation errors (busy, cancelled, expired, timed out)
//   - DB001-DB005: Database errors
package core
