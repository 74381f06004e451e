package files

type uploadResponse struct {
	Success  bool   `json:"success"`
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

type deleteRequest struct {
	FilePath string `json:"filePath"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type listResponse struct {
	Success bool         `json:"success"`
	Data    []StoredFile `json:"data"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
}

func toUploadResponse(f StoredFile) uploadResponse {
	return uploadResponse{
		Success:  true,
		FileName: f.FileName,
		FilePath: f.RelativePath,
		FileSize: f.SizeBytes,
		FileType: f.MimeType,
	}
}
