// data_handler.go
package email

import (
	"fmt"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"github.com/hkagei/jetblue-route-planning/src/datasource/file"
)

// DataFrameWrapper 封装最近一次从邮件读入的原始表, 并提供线程安全访问
type DataFrameWrapper struct {
	df     dataframe.DataFrame
	source string
	mu     sync.RWMutex
}

// GetDF 获取当前DataFrame(线程安全)
func (d *DataFrameWrapper) GetDF() dataframe.DataFrame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.df
}

// SetDF 替换当前DataFrame(线程安全)
func (d *DataFrameWrapper) SetDF(df dataframe.DataFrame, source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.df = df
	d.source = source
}

// Source 当前数据来自哪个附件
func (d *DataFrameWrapper) Source() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

// ReadAttachment 附件内容转DataFrame, xlsx按sheetName/headerRow读取
func (d *DataFrameWrapper) ReadAttachment(a *Attachment, sheetName string, headerRow int) error {
	if a == nil {
		return fmt.Errorf("没有可读取的附件")
	}
	df, err := file.LoadBytes(a.Filename, a.Content, sheetName, headerRow)
	if err != nil {
		return fmt.Errorf("附件 %s 转换为dataframe失败: %w", a.Filename, err)
	}
	if df.Nrow() == 0 {
		return fmt.Errorf("附件 %s 没有数据行", a.Filename)
	}
	d.SetDF(df, a.Filename)
	return nil
}
