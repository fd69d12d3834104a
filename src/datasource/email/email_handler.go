// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hkagei/jetblue-route-planning/src/datasource/file"
	"github.com/hkagei/jetblue-route-planning/src/storage"
	"go.uber.org/zap"
)

// ====================== 邮件处理器实现 ======================

// DataAttachment 第一个CSV或xlsx附件
func (e *Email) DataAttachment() *Attachment {
	for _, a := range e.Attachments {
		if file.Supported(a.Filename) {
			return a
		}
	}
	return nil
}

// AttachmentHandler 把目标邮件的数据附件保存到DataDir, 同一封邮件只处理一次
type AttachmentHandler struct {
	TargetSubject string          // 目标邮件主题关键词
	DataDir       string          // 附件保存目录
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	logger        *storage.Logger
	mu            sync.RWMutex // 保护processedUIDs的读写锁
}

func NewAttachmentHandler(subject, dataDir string, logger *storage.Logger) *AttachmentHandler {
	if logger == nil {
		logger = storage.NewNopLogger()
	}
	return &AttachmentHandler{
		TargetSubject: subject,
		DataDir:       dataDir,
		processedUIDs: make(map[uint32]bool),
		logger:        logger,
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存附件并记录UID
func (h *AttachmentHandler) Handle(email *Email) error {
	_, err := h.Save(email)
	return err
}

// Save 返回已保存附件的路径
func (h *AttachmentHandler) Save(email *Email) ([]string, error) {
	if email == nil || h.IsProcessed(email.UID) {
		return nil, nil
	}

	if !strings.Contains(email.Subject, h.TargetSubject) {
		h.logger.Debug("跳过主题不匹配的邮件", zap.String("subject", email.Subject))
		return nil, nil
	}

	if err := file.EnsureDir(h.DataDir); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	var saved []string
	for _, attachment := range email.Attachments {
		if !file.Supported(attachment.Filename) {
			continue
		}

		// 只保留文件名, 防止附件名中带路径
		filePath := filepath.Join(h.DataDir, filepath.Base(attachment.Filename))
		if err := os.WriteFile(filePath, attachment.Content, 0644); err != nil {
			return saved, fmt.Errorf("保存附件失败: %w", err)
		}
		h.logger.Info("附件已保存",
			zap.String("subject", email.Subject),
			zap.String("from", email.From),
			zap.String("path", filePath))
		saved = append(saved, filePath)
	}

	if len(saved) > 0 {
		h.markAsProcessed(email.UID)
	}
	return saved, nil
}
