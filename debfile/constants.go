package debfile

// ControlField is a standard field of a binary package control file.
type ControlField string

const (
	FieldPackage       ControlField = "Package"
	FieldVersion       ControlField = "Version"
	FieldArchitecture  ControlField = "Architecture"
	FieldMaintainer    ControlField = "Maintainer"
	FieldDescription   ControlField = "Description"
	FieldSection       ControlField = "Section"
	FieldPriority      ControlField = "Priority"
	FieldHomepage      ControlField = "Homepage"
	FieldEssential     ControlField = "Essential"
	FieldDepends       ControlField = "Depends"
	FieldPreDepends    ControlField = "Pre-Depends"
	FieldRecommends    ControlField = "Recommends"
	FieldSuggests      ControlField = "Suggests"
	FieldEnhances      ControlField = "Enhances"
	FieldConflicts     ControlField = "Conflicts"
	FieldBreaks        ControlField = "Breaks"
	FieldReplaces      ControlField = "Replaces"
	FieldProvides      ControlField = "Provides"
	FieldBuiltUsing    ControlField = "Built-Using"
	FieldSource        ControlField = "Source"
	FieldInstalledSize ControlField = "Installed-Size"
)

// ControlFile is a standard file of the control.tar member.
type ControlFile string

const (
	FileControl   ControlFile = "control"
	FileMd5sums   ControlFile = "md5sums"
	FileConffiles ControlFile = "conffiles"
	FilePreinst   ControlFile = "preinst"
	FilePostinst  ControlFile = "postinst"
	FilePrerm     ControlFile = "prerm"
	FilePostrm    ControlFile = "postrm"
	FileConfig    ControlFile = "config"
	FileTriggers  ControlFile = "triggers"
)

// MaintainerScripts lists the control files executed by dpkg.
var MaintainerScripts = []ControlFile{FilePreinst, FilePostinst, FilePrerm, FilePostrm, FileConfig}

// Member names of the ar archive, without compression extension.
const (
	MemberDebianBinary = "debian-binary"
	MemberControl      = "control.tar"
	MemberData         = "data.tar"
)

// Compression is the compression of a tar member. Its value is the file
// name extension, without the dot.
type Compression string

const (
	None  Compression = ""
	Gzip  Compression = "gz"
	Xz    Compression = "xz"
	Lzma  Compression = "lzma"
	Bzip2 Compression = "bz2"
	Zstd  Compression = "zst"
)

// Ext returns the extension to append to a member name.
func (c Compression) Ext() string {
	if c == None {
		return ""
	}
	return "." + string(c)
}

const (
	changelogDebian = "usr/share/doc/%s/changelog.Debian.gz"
	changelogNative = "usr/share/doc/%s/changelog.gz"
)
