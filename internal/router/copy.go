package router

import (
	"fmt"

	"libchat/internal/models"
)

// Patron-facing copy. Replies are always Vietnamese.
const (
	HandoffReply = "Đang kết nối bạn với thủ thư, vui lòng chờ trong giây lát..."
	BusyReply    = "Hệ thống đang bận, vui lòng thử lại sau."
	LibraryInfo  = "Thư viện mở cửa từ 7h30 đến 21h00 các ngày trong tuần (Chủ nhật đến 17h00), " +
		"tại tầng 1 nhà A, khuôn viên chính của trường."
)

// handoffPhrases trigger a human handoff when they appear anywhere in a message.
var handoffPhrases = []string{
	"meet staff",
	"talk to a librarian",
	"talk to librarian",
	"chat with a person",
	"talk to a human",
	"consultant",
	"gặp thủ thư",
	"gặp nhân viên",
	"gặp người thật",
	"nói chuyện với người",
	"nói chuyện với thủ thư",
	"tư vấn",
}

func availabilityPhrase(status models.BookStatus) string {
	switch status {
	case models.BookAvailable:
		return "còn sẵn để mượn"
	case models.BookBorrowed:
		return "đang được mượn"
	case models.BookMaintenance:
		return "đang bảo trì"
	default:
		return "chưa rõ tình trạng"
	}
}

func statusReply(book models.BookRecord) string {
	return fmt.Sprintf("Sách \"%s\" hiện %s.", book.Title, availabilityPhrase(book.Status))
}

func searchReply(count int, keywords string) string {
	return fmt.Sprintf("Mình tìm thấy %d cuốn sách liên quan đến \"%s\".", count, keywords)
}

func notFoundReply(keywords string) string {
	return fmt.Sprintf("Rất tiếc, mình không tìm thấy sách nào với từ khóa \"%s\".", keywords)
}
