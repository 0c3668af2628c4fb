package service

// NotificationKind separates confirmations from failures in the
// notification channel.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyFailure NotificationKind = "destructive"
)

// NotificationSink receives the dismissible messages a console emits.
type NotificationSink interface {
	Notify(kind NotificationKind, title, message string)
}

// NotifierFunc adapts a function to NotificationSink.
type NotifierFunc func(kind NotificationKind, title, message string)

func (f NotifierFunc) Notify(kind NotificationKind, title, message string) {
	f(kind, title, message)
}

// Recorder observes workflow outcomes.
type Recorder interface {
	ObserveWorkflow(workflow, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWorkflow(string, string) {}

// Workflow names and outcomes reported to a Recorder.
const (
	WorkflowLoad     = "load"
	WorkflowUpload   = "upload"
	WorkflowDelete   = "delete"
	WorkflowDownload = "download"
	WorkflowTracking = "tracking"
	WorkflowStats    = "stats"

	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Notification texts shown to the user.
const (
	titleLoadFailed    = "Gagal memuat data"
	msgLoadFailed      = "Tidak dapat memuat daftar format surat"
	titleUploaded      = "Berhasil!"
	msgUploaded        = "Format surat telah berhasil diunggah"
	titleUploadFailed  = "Gagal mengunggah"
	msgUploadFailed    = "Terjadi kesalahan saat mengunggah format surat"
	titleDeleted       = "Berhasil"
	msgDeleted         = "Format surat telah dihapus"
	titleDeleteFailed  = "Gagal menghapus"
	msgDeleteFailed    = "Terjadi kesalahan saat menghapus format surat"
	titleStatsFailed   = "Gagal memuat statistik"
	msgStatsFailed     = "Tidak dapat memuat statistik unduhan"
	emptyNoMatch       = "Tidak ada hasil yang cocok dengan pencarian Anda"
	emptyNoTemplates   = "Mulai dengan mengunggah format surat baru"
	emptyNoStatsRecord = "Belum ada data unduhan"
)
