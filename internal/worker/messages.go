package worker

// Notification templates. Placeholders: service username, then the
// value relevant to the warning.
const (
	msgExpiryWarn     = "⏳ سرویس <code>%s</code> شما %d روز دیگر منقضی می‌شود. برای تمدید اقدام کنید."
	msgVolumeWarn     = "⚠️ از حجم سرویس <code>%s</code> تنها %.2f گیگابایت باقی مانده است."
	msgServiceRemoved = "❌ سرویس <code>%s</code> به دلیل %s حذف شد."
	reasonVolumeOver  = "اتمام حجم"
	reasonTimeOver    = "اتمام زمان"
	msgTestEnded      = "🔔 سرویس تست <code>%s</code> شما به پایان رسید. برای ادامه استفاده، سرویس تهیه کنید."
	msgAdminRemoved   = "🗑 سرویس <code>%s</code> (کاربر <code>%s</code>، پنل <code>%s</code>) حذف شد."
)
