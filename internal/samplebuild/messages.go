package samplebuild

// Diagnostic templates. Placeholders are positional: {0}, {1}, ...
const (
	MsgProjectsInBuild = "Projects in this build: {0}"

	MsgOutOfDateMissingOutput = "Project '{0}' is out of date because output file '{1}' does not exist"
	MsgOutOfDateOlderOutput   = "Project '{0}' is out of date because output '{1}' is older than input '{2}'"
	MsgOutOfDateErrors        = "Project '{0}' is out of date because buildinfo file '{1}' indicates that program needs to report errors"
	MsgOutOfDateUpstream      = "Project '{0}' is out of date because output of its dependency '{1}' has changed"
	MsgOutOfDateMissingInput  = "Project '{0}' is out of date because input '{1}' does not exist"
	MsgUpToDate               = "Project '{0}' is up to date because newest input '{1}' is older than output '{2}'"
	MsgForcedRebuild          = "Project '{0}' is being forcibly rebuilt"
	MsgBuilding               = "Building project '{0}'..."
	MsgUpdatingTimestamps     = "Updating output timestamps of project '{0}'..."
	MsgDryRunBuild            = "A non-dry build would build project '{0}'"
	MsgDryRunUpToDate         = "Project '{0}' is up to date"
	MsgCircularReference      = "Project references may not form a circular graph. Cycle detected: {0}"
	MsgConfigNotFound         = "File '{0}' not found."
	MsgConfigInvalid          = "Failed to parse file '{0}': {1}."
	MsgFileNotFound           = "File '{0}' not found."
	MsgCannotFindModule       = "Cannot find module '{0}' or its corresponding type declarations."
	MsgNoExportedMember       = "Module '{0}' has no exported member '{1}'."
	MsgSyntaxError            = "Syntax error in '{0}' at line {1}."
	MsgPrependRequiresOutFile = "Cannot prepend project '{0}' because it does not have 'outFile' set"
)
