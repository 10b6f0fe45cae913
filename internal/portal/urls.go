package portal

import "fmt"

// Page URLs surfaced in notification metadata. Item masks deep-link to one
// thread or news entry; section URLs point at the listing pages.
const (
	MarksURL     = "https://orioks.miet.ru/student/student"
	NewsMask     = "https://orioks.miet.ru/main/view-news?id=%d"
	HomeworkMask = "https://orioks.miet.ru/student/homework/view?id_thread=%s"
)

var requestMasks = map[string]string{
	"questionnaire": "https://orioks.miet.ru/request/questionnaire/view?id_thread=%s",
	"doc":           "https://orioks.miet.ru/request/doc/view?id_thread=%s",
	"reference":     "https://orioks.miet.ru/request/reference/view?id_thread=%s",
}

func NewsURL(id int64) string { return fmt.Sprintf(NewsMask, id) }

func HomeworkURL(threadID string) string { return fmt.Sprintf(HomeworkMask, threadID) }

func RequestURL(section, threadID string) string {
	mask, ok := requestMasks[section]
	if !ok {
		mask = requestMasks["reference"]
	}
	return fmt.Sprintf(mask, threadID)
}
