package uldimse

import (
	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// StatusCode is a DIMSE service response code (PS 3.7 Annex C / PS 3.4).
type StatusCode uint16

const (
	StatusSuccess               StatusCode = 0x0000
	StatusCancel                StatusCode = 0xFE00
	StatusPending               StatusCode = 0xFF00
	StatusProcessingFailure     StatusCode = 0x0110
	StatusSOPClassNotSupported  StatusCode = 0x0112
	StatusInvalidArgumentValue  StatusCode = 0x0115
	StatusInvalidAttributeValue StatusCode = 0x0106
	StatusInvalidObjectInstance StatusCode = 0x0117
	StatusUnrecognizedOperation StatusCode = 0x0211
	StatusNotAuthorized         StatusCode = 0x0124
	StatusMistypedArgument      StatusCode = 0x0212
	StatusNoSuchAttribute       StatusCode = 0x0105

	// C-STORE (PS 3.4 Annex GG.4-1)
	StatusCStoreOutOfResources              StatusCode = 0xA700
	StatusCStoreDataSetDoesNotMatchSOPClass StatusCode = 0xA900
	StatusCStoreCannotUnderstand            StatusCode = 0xC000

	// C-FIND / C-MOVE / C-GET
	StatusUnableToProcess                               StatusCode = 0xC000
	StatusOutOfResourcesUnableToCalculateNumberOfMatches StatusCode = 0xA701
	StatusOutOfResourcesUnableToPerformSubOperations     StatusCode = 0xA702
	StatusMoveDestinationUnknown                         StatusCode = 0xA801

	StatusAttributeValueOutOfRange StatusCode = 0x0116
	StatusAttributeListError       StatusCode = 0x0107
)

// Success reports whether code represents a final, successful completion
// (as opposed to Pending, Warning, or Failure per PS 3.7 C.2.2's status
// classes).
func (c StatusCode) Success() bool { return c == StatusSuccess }

// Pending reports whether more responses are expected for this request.
func (c StatusCode) Pending() bool { return c == StatusPending || c == 0xFF01 }

// Status is the outcome of a DIMSE request, carried on every response
// message (PS 3.7 C).
type Status struct {
	Code         StatusCode
	ErrorComment string
}

// SuccessStatus is the canonical OK response status.
var SuccessStatus = Status{Code: StatusSuccess}

func (s *Status) toElements() ([]*dicom.Element, error) {
	statusElem, err := dicom.NewElement(commandset.Status, []int{int(s.Code)})
	if err != nil {
		return nil, err
	}
	elems := []*dicom.Element{statusElem}
	if s.ErrorComment != "" {
		commentElem, err := dicom.NewElement(commandset.ErrorComment, []string{s.ErrorComment})
		if err != nil {
			return nil, err
		}
		elems = append(elems, commentElem)
	}
	return elems, nil
}
