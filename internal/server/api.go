package server

import "time"

// Meta accompanies every JSON response body.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type SavePDFData struct {
	DocID   string `json:"doc_id"`
	PDFPath string `json:"pdf_path"`
}

type SaveImageData struct {
	DocID      string `json:"doc_id"`
	PageNumber int    `json:"page_number"`
	ImagePath  string `json:"image_path"`
}

type DeleteDocumentData struct {
	DocID  string `json:"doc_id"`
	Detail string `json:"detail"`
}

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	DocID    string `json:"doc_id"`
	FileName string `json:"file_name"`
}

// SetStatusRequest is the body of POST /documents/{docID}/status.
type SetStatusRequest struct {
	Status string `json:"status"`
}

type dataResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorInfo `json:"error"`
	Meta  Meta      `json:"meta"`
}
