package main

// Well-known UIDs this CLI speaks. A full SOP class registry is out of
// scope for a demo client/server; these are the handful PS 3.4 assigns to
// verification and storage.
const (
	verificationSOPClassUID = "1.2.840.10008.1.1"
	implicitVRLittleEndian  = "1.2.840.10008.1.2"
	explicitVRLittleEndian  = "1.2.840.10008.1.2.1"

	ctImageStorageSOPClassUID               = "1.2.840.10008.5.1.4.1.1.2"
	mrImageStorageSOPClassUID               = "1.2.840.10008.5.1.4.1.1.4"
	secondaryCaptureImageStorageSOPClassUID = "1.2.840.10008.5.1.4.1.1.7"

	implementationClassUID = "1.2.826.0.1.3680043.10.1000.1"
	implementationVersion  = "DICOMUL_1"
)
