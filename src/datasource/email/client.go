package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/hkagei/jetblue-route-planning/src/storage"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	DefaultMailbox = "INBOX"
	DefaultWindow  = 24 * time.Hour // 只看这段时间内的未读邮件
	maxFetch       = 100
)

func init() {
	// 附件名与正文中的非UTF-8字符集(GBK等)
	message.CharsetReader = charsetReader
}

// MailService 邮件服务核心接口
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

type Email struct {
	UID         uint32
	Date        time.Time
	From        string // 已解码
	Subject     string // 已解码
	Attachments []*Attachment
}

type Attachment struct {
	Filename string
	Content  []byte
}

// EmailClient IMAP邮件客户端, 每次检查建立一次连接
type EmailClient struct {
	server   string
	username string
	password string

	Mailbox string
	Window  time.Duration

	mu     sync.Mutex
	client *client.Client
	logger *storage.Logger
}

// NewEmailClient server 形如 "imap.example.com:993"
func NewEmailClient(server, username, password string, logger *storage.Logger) *EmailClient {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
		Mailbox:  DefaultMailbox,
		Window:   DefaultWindow,
		logger:   logger,
	}
}

func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}
	s.client = c
	return nil
}

func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
}

// FetchUnreadEmails Window内的未读邮件, 最多取最新的100封
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}

	if _, err := s.client.Select(s.Mailbox, true); err != nil {
		return nil, fmt.Errorf("选择邮箱 %s 失败: %w", s.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-s.Window)
	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > maxFetch {
		ids = ids[len(ids)-maxFetch:]
	}
	return s.fetch(ids)
}

func (s *EmailClient) fetch(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	// BODY.PEEK 不改变已读状态, 由邮箱客户端自行处理
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqset, []imap.FetchItem{imap.FetchUid, section.FetchItem()}, messages)
	}()

	var emails []*Email
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		e, err := ParseMessage(body, s.logger)
		if err != nil {
			s.logger.Warning("解析邮件失败", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		e.UID = msg.Uid
		emails = append(emails, e)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	return emails, nil
}

// ParseMessage 解析RFC 5322邮件, 收集所有附件
func ParseMessage(r io.Reader, logger *storage.Logger) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}

	date, _ := mr.Header.Date()
	e := &Email{
		Date:    date,
		From:    decodeHeader(mr.Header.Get("From")),
		Subject: decodeHeader(mr.Header.Get("Subject")),
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Debug("跳过无法解析的邮件部分", zap.Error(err))
			continue
		}
		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		a, err := readAttachment(h, p.Body)
		if err != nil {
			logger.Warning("解析附件失败", zap.String("subject", e.Subject), zap.Error(err))
			continue
		}
		e.Attachments = append(e.Attachments, a)
	}
	return e, nil
}

func readAttachment(h *mail.AttachmentHeader, body io.Reader) (*Attachment, error) {
	name, err := h.Filename()
	if err != nil || name == "" {
		return nil, fmt.Errorf("无效的附件名")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, fmt.Errorf("读取附件 %s 失败: %w", name, err)
	}
	return &Attachment{Filename: decodeHeader(name), Content: buf.Bytes()}, nil
}

// decodeHeader =?charset?encoding?text?= -> UTF-8, 失败时原样返回
func decodeHeader(header string) string {
	dec := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader 按WHATWG标签查找编码, gb2312按GBK处理
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(strings.ToLower(strings.TrimSpace(label)))
	if err != nil {
		return nil, fmt.Errorf("不支持的字符集 %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// CheckEmails 连接邮箱, 返回主题包含keyword且带可读附件的最新邮件. 没有时返回nil.
func CheckEmails(svc MailService, keyword string, logger *storage.Logger) (*Email, error) {
	start := time.Now()
	if err := svc.Connect(); err != nil {
		return nil, fmt.Errorf("连接失败: %w", err)
	}
	defer svc.Disconnect()

	emails, err := svc.FetchUnreadEmails()
	if err != nil {
		return nil, fmt.Errorf("获取邮件失败: %w", err)
	}

	target := filterLatestTargetEmail(emails, keyword)
	if target == nil {
		logger.Info("没有目标邮件", zap.Int("unread", len(emails)), zap.String("keyword", keyword))
		return nil, nil
	}
	logger.Info("找到目标邮件",
		zap.String("subject", target.Subject),
		zap.Time("date", target.Date),
		zap.Duration("elapsed", time.Since(start)))
	return target, nil
}

// filterLatestTargetEmail 主题包含keyword且带有CSV/xlsx附件的最新邮件
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var latest *Email
	for _, e := range emails {
		if !strings.Contains(e.Subject, keyword) || e.DataAttachment() == nil {
			continue
		}
		if latest == nil || e.Date.After(latest.Date) {
			latest = e
		}
	}
	return latest
}
