package docstore

import "errors"

// Sentinel errors for document store operations.
var (
	// ErrConnectionFailed indicates the engine could not be reached at
	// startup. This is the only unrecoverable startup failure.
	ErrConnectionFailed = errors.New("failed to connect to document store engine")

	// ErrSchema indicates a missing or malformed field-mapping configuration.
	ErrSchema = errors.New("invalid field mapping")

	// ErrNotFound indicates an operation target was absent where presence
	// was required.
	ErrNotFound = errors.New("target collection or document not found")

	// ErrMissingVector indicates a document carries no embedding under the
	// canonical transient key or the collection's embedding field.
	ErrMissingVector = errors.New("document is missing embedding data")

	// ErrVectorWidth indicates an embedding whose width differs from the
	// collection's declared dimensionality.
	ErrVectorWidth = errors.New("embedding width does not match collection schema")

	// ErrCreate indicates a remote collection-creation failure.
	ErrCreate = errors.New("failed to create collection")

	// ErrInsert indicates a remote write failure.
	ErrInsert = errors.New("failed to insert documents")

	// ErrDelete indicates a remote delete failure.
	ErrDelete = errors.New("failed to delete documents")

	// ErrMissingID indicates an update condition without a string id.
	ErrMissingID = errors.New("update condition requires a string id")

	// ErrInvalidFilter indicates a condition that cannot be rendered as a
	// safe filter expression.
	ErrInvalidFilter = errors.New("invalid filter condition")

	// ErrUnsupported indicates an operation this engine cannot perform.
	ErrUnsupported = errors.New("operation not supported by this engine")
)
